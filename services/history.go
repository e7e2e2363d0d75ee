package services

import (
	"fmt"
	"time"

	"github.com/yeremiapane/waiter-pos/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryStore is the device's journal of what it sent to the kitchen and
// which kitchen voids it saw. It is a log, never read back into the engine.
type HistoryStore struct {
	DB *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{DB: db}
}

// RecordBatch appends a dispatched batch.
func (hs *HistoryStore) RecordBatch(batch models.NotificationBatch) error {
	if hs == nil || hs.DB == nil {
		return nil
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	batch.ID = 0
	if err := hs.DB.Create(&batch).Error; err != nil {
		return fmt.Errorf("record batch %s: %w", batch.BatchID, err)
	}
	return nil
}

// RecordVoid stores a kitchen void once per natural key.
func (hs *HistoryStore) RecordVoid(ev models.VoidEvent) error {
	if hs == nil || hs.DB == nil {
		return nil
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	ev.ID = 0
	ev.Reason = ev.Key().Reason
	err := hs.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&ev).Error
	if err != nil {
		return fmt.Errorf("record void %s: %w", ev.Key(), err)
	}
	return nil
}

// Batches lists an order's batches, newest first.
func (hs *HistoryStore) Batches(orderID string, limit int) ([]models.NotificationBatch, error) {
	var batches []models.NotificationBatch
	q := hs.DB.Order("created_at DESC").Order("id DESC")
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// Voids lists an order's recorded kitchen voids, newest first.
func (hs *HistoryStore) Voids(orderID string, limit int) ([]models.VoidEvent, error) {
	var voids []models.VoidEvent
	q := hs.DB.Order("received_at DESC").Order("id DESC")
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&voids).Error; err != nil {
		return nil, err
	}
	return voids, nil
}
