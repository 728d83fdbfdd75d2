// Package store persists normalized messages and configuration entities in
// SQLite via GORM, and fans out change events to dashboard subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/emirlan/inboxlm/internal/message"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the database connection and the SSE subscriber hub.
type Store struct {
	db *gorm.DB

	ssemu       sync.Mutex
	subscribers map[chan string]struct{}
}

// Open connects to the SQLite database at path, creating the parent
// directory if needed, and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		db:          db,
		subscribers: make(map[chan string]struct{}),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&Message{}, &AiModel{}, &User{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Messages ---

// CreateMessage inserts m unless a record with the same (platform,
// external_id) already exists. It reports whether a new row was created; on
// conflict, m is overwritten with the previously stored record so callers
// always hold the canonical row. New rows notify dashboard subscribers.
func (s *Store) CreateMessage(ctx context.Context, m *Message) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create message: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var existing Message
		err := s.db.WithContext(ctx).
			Where("platform = ? AND external_id = ?", m.Platform, m.ExternalID).
			First(&existing).Error
		if err != nil {
			return false, fmt.Errorf("failed to load existing message: %w", err)
		}
		*m = existing
		return false, nil
	}

	s.notifySubscribers("refresh")
	return true, nil
}

// MessagesByPlatform returns all stored messages for a platform in
// creation-time order.
func (s *Store) MessagesByPlatform(ctx context.Context, p message.Platform) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("platform = ?", p).
		Order("created_at, id").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// MessagesByDateRange returns all messages with created_at in
// [start, end], inclusive on both ends, in creation-time order.
func (s *Store) MessagesByDateRange(ctx context.Context, start, end time.Time) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at, id").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages by date range: %w", err)
	}
	return msgs, nil
}

// RecentMessages returns the most recent limit messages across all
// platforms, newest first.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []Message
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return msgs, nil
}

// Stats returns aggregate message counts for the dashboard.
func (s *Store) Stats(ctx context.Context, urgentPriority int) (Stats, error) {
	stats := Stats{ByPlatform: make(map[message.Platform]int64)}

	db := s.db.WithContext(ctx).Model(&Message{})
	if err := db.Count(&stats.TotalMessages).Error; err != nil {
		return stats, fmt.Errorf("failed to count messages: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Message{}).
		Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return stats, fmt.Errorf("failed to count processed messages: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Message{}).
		Where("priority = ?", urgentPriority).Count(&stats.UrgentMessages).Error; err != nil {
		return stats, fmt.Errorf("failed to count urgent messages: %w", err)
	}

	type platformCount struct {
		Platform message.Platform
		Count    int64
	}
	var counts []platformCount
	if err := s.db.WithContext(ctx).Model(&Message{}).
		Select("platform, count(*) as count").
		Group("platform").
		Scan(&counts).Error; err != nil {
		return stats, fmt.Errorf("failed to count messages by platform: %w", err)
	}
	for _, c := range counts {
		stats.ByPlatform[c.Platform] = c.Count
	}

	return stats, nil
}

// --- AI models ---

// ActiveAiModels returns all AI model registrations flagged active.
func (s *Store) ActiveAiModels(ctx context.Context) ([]AiModel, error) {
	var models []AiModel
	err := s.db.WithContext(ctx).Where("active = ?", true).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ai models: %w", err)
	}
	return models, nil
}

// CreateAiModel registers a new AI backend.
func (s *Store) CreateAiModel(ctx context.Context, m *AiModel) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create ai model: %w", err)
	}
	return nil
}

// AiModelByID returns a single AI model registration.
func (s *Store) AiModelByID(ctx context.Context, id uint) (*AiModel, error) {
	var m AiModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ai model: %w", err)
	}
	return &m, nil
}

// SetAiModelActive toggles the active flag of an AI model registration.
func (s *Store) SetAiModelActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&AiModel{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to update ai model: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

// CreateUser stores a user record for the auth collaborator.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UserByUsername looks up a user record.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// --- SSE subscribers ---

// Subscribe registers a dashboard subscriber and returns a channel that
// receives event strings. Callers must Unsubscribe to release it.
func (s *Store) Subscribe() chan string {
	ch := make(chan string, 16)
	s.ssemu.Lock()
	s.subscribers[ch] = struct{}{}
	s.ssemu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch chan string) {
	s.ssemu.Lock()
	delete(s.subscribers, ch)
	s.ssemu.Unlock()
	close(ch)
}

// notifySubscribers sends an event string to all subscribers. Subscribers
// with a full buffer are skipped to avoid blocking inserts.
func (s *Store) notifySubscribers(event string) {
	s.ssemu.Lock()
	defer s.ssemu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
