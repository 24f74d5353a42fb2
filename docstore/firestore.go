package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreStore commits each batch in its own Firestore transaction.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *FirestoreStore) Scan(ctx context.Context, collection string, fn func(Document) error) error {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		if err := fn(Document{ID: snap.Ref.ID, Fields: snap.Data()}); err != nil {
			return err
		}
	}
}

func (s *FirestoreStore) Commit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	// A single attempt: retrying is left to whoever runs the job.
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, op := range ops {
			ref := s.client.Collection(op.Collection).Doc(op.ID)
			var err error
			switch op.Kind {
			case OpUpsert:
				if op.Merge {
					err = tx.Set(ref, op.Fields, firestore.MergeAll)
				} else {
					err = tx.Set(ref, op.Fields)
				}
			case OpDelete:
				err = tx.Delete(ref)
			default:
				err = fmt.Errorf("unknown op kind %d", int(op.Kind))
			}
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
		}
		return nil
	}, firestore.MaxAttempts(1))
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
