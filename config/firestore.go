package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var (
	firestoreClient   *firestore.Client
	firestoreClientMu sync.Mutex
)

// GetFirestore returns the shared Firestore client, creating it on first use.
// It uses Application Default Credentials unless FIRESTORE_CREDENTIALS_JSON is provided.
func GetFirestore(ctx context.Context) (*firestore.Client, error) {
	firestoreClientMu.Lock()
	defer firestoreClientMu.Unlock()
	if firestoreClient != nil {
		return firestoreClient, nil
	}

	projectID := strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID"))
	if projectID == "" {
		projectID = GetProjectID()
	}
	if projectID == "" {
		return nil, errors.New("FIRESTORE_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("FIRESTORE_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	c, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	firestoreClient = c
	GetLogger().WithFields(logrus.Fields{"project_id": projectID}).Info("[firestore.connected]")
	return c, nil
}
