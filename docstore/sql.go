package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow stores one document as a JSON body. Values come back the way JSON decodes
// them: numbers as float64, timestamps as RFC3339 strings.
type documentRow struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement"`
	Collection string            `gorm:"size:100;not null;uniqueIndex:idx_documents_collection_doc"`
	DocId      string            `gorm:"size:191;not null;uniqueIndex:idx_documents_collection_doc"`
	Body       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime"`
}

func (documentRow) TableName() string { return "documents" }

const sqlScanBatch = 500

// SQLStore keeps documents in a single MySQL table through gorm.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&documentRow{})
}

func (s *SQLStore) NewID(string) string {
	return uuid.NewString()
}

func (s *SQLStore) Scan(ctx context.Context, collection string, fn func(Document) error) error {
	var rows []documentRow
	result := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		FindInBatches(&rows, sqlScanBatch, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				fields := map[string]any(row.Body)
				if fields == nil {
					fields = map[string]any{}
				}
				if err := fn(Document{ID: row.DocId, Fields: fields}); err != nil {
					return err
				}
			}
			return nil
		})
	return result.Error
}

func (s *SQLStore) Commit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case OpUpsert:
				err = s.upsert(tx, op)
			case OpDelete:
				err = tx.Where("collection = ? AND doc_id = ?", op.Collection, op.ID).Delete(&documentRow{}).Error
			default:
				err = fmt.Errorf("unknown op kind %d", int(op.Kind))
			}
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) upsert(tx *gorm.DB, op Op) error {
	body := copyFields(op.Fields)
	if op.Merge {
		var existing documentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND doc_id = ?", op.Collection, op.ID).
			Take(&existing).Error
		switch {
		case err == nil:
			merged := copyFields(existing.Body)
			for k, v := range op.Fields {
				merged[k] = v
			}
			body = merged
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}

	row := documentRow{Collection: op.Collection, DocId: op.ID, Body: datatypes.JSONMap(body)}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
