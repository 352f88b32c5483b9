package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Collection names used by the evaluation services.
const (
	CollectionInterviews = "interviews"
	CollectionBatches    = "batches"
	CollectionAnalyses   = "analyses"
	CollectionFiles      = "files"
)

// Store is a persistent key-value store partitioned into collections.
// Values are JSON documents.
type Store interface {
	Initialize(ctx context.Context) error
	SaveItem(ctx context.Context, collection, id string, value any) error
	GetItem(ctx context.Context, collection, id string, target any) (bool, error)
	GetAllItems(ctx context.Context, collection string) ([]json.RawMessage, error)
	DeleteItem(ctx context.Context, collection, id string) (bool, error)
	ClearStore(ctx context.Context, collection string) error
}

type storeItem struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:128"`
	Value      datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (storeItem) TableName() string {
	return "store_items"
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Initialize implements Store.
func (s *gormStore) Initialize(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&storeItem{}); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// SaveItem implements Store. Existing items are replaced.
func (s *gormStore) SaveItem(ctx context.Context, collection, id string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	now := time.Now().UTC()
	item := storeItem{
		Collection: collection,
		ID:         id,
		Value:      datatypes.JSON(encoded),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&item).Error
	if err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", collection, id, err)
	}
	return nil
}

// GetItem implements Store. It reports false when the item does not exist.
func (s *gormStore) GetItem(ctx context.Context, collection, id string, target any) (bool, error) {
	var item storeItem
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(item.Value, target); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// GetAllItems implements Store. Items are returned in insertion order.
func (s *gormStore) GetAllItems(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var items []storeItem
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	values := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		values = append(values, json.RawMessage(item.Value))
	}
	return values, nil
}

// DeleteItem implements Store. It reports whether an item was removed.
func (s *gormStore) DeleteItem(ctx context.Context, collection, id string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&storeItem{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", collection, id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClearStore implements Store.
func (s *gormStore) ClearStore(ctx context.Context, collection string) error {
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Delete(&storeItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}
