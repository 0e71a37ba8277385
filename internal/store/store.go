package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet-checkpoint/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MaxRecentScans caps RecentScans.
const MaxRecentScans = 500

// Store defines the interface for all database operations.
type Store interface {
	RecordScan(ctx context.Context, ev *model.ScanEvent) error
	RecentScans(ctx context.Context, limit int) ([]model.ScanEvent, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	// SubscriptionsFor returns the subscriptions that opted into clock-in events
	// (clockIn true) or clock-out events (clockIn false).
	SubscriptionsFor(ctx context.Context, clockIn bool) ([]model.PushSubscription, error)

	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// RecordScan appends a scan to the journal, assigning an ID and timestamp when unset.
func (s *gormStore) RecordScan(ctx context.Context, ev *model.ScanEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ScannedAt.IsZero() {
		ev.ScannedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to record scan %s: %w", ev.ID, err)
	}
	return nil
}

// RecentScans returns the newest scans first.
func (s *gormStore) RecentScans(ctx context.Context, limit int) ([]model.ScanEvent, error) {
	if limit <= 0 || limit > MaxRecentScans {
		limit = MaxRecentScans
	}
	var events []model.ScanEvent
	if err := s.db.WithContext(ctx).Order("scanned_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent scans: %w", err)
	}
	return events, nil
}

// SaveSubscription creates or replaces the subscription for its endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "clock_in", "clock_out"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) SubscriptionsFor(ctx context.Context, clockIn bool) ([]model.PushSubscription, error) {
	column := "clock_out"
	if clockIn {
		column = "clock_in"
	}
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where(column+" = ?", true).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	return subs, nil
}

// Ping checks the database connection.
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
