package config

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/winery_ingest/docstore"
)

const (
	BackendFirestore = "firestore"
	BackendMySQL     = "mysql"
	BackendMemory    = "memory"
)

// OpenDocStore connects the document backend selected by DOCSTORE_BACKEND.
func OpenDocStore(ctx context.Context, settings *Settings) (docstore.Store, error) {
	switch settings.Backend {
	case BackendFirestore, "":
		client, err := GetFirestore(ctx)
		if err != nil {
			return nil, err
		}
		return docstore.NewFirestoreStore(client), nil
	case BackendMySQL:
		if err := ConnectDatabaseWithRetry(ctx); err != nil {
			return nil, err
		}
		store := docstore.NewSQLStore(GetDB())
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate documents table: %w", err)
		}
		return store, nil
	case BackendMemory:
		return docstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown DOCSTORE_BACKEND %q", settings.Backend)
	}
}
