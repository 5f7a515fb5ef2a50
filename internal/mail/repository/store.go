package repository

import (
	"context"
	"time"

	"mailsync-backend/internal/mail/domain"

	"gorm.io/gorm"
)

const defaultStorageTimeout = 10 * time.Second

// gormStore implements Store on top of gorm
type gormStore struct {
	db      *gorm.DB
	timeout time.Duration
	threads ThreadRepository
	msgs    MessageRepository
	cursors CursorStateRepository
}

// NewStore creates a Store whose every call runs under timeout
func NewStore(db *gorm.DB, timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	return &gormStore{
		db:      db,
		timeout: timeout,
		threads: NewThreadRepository(db, timeout),
		msgs:    NewMessageRepository(db, timeout),
		cursors: NewCursorStateRepository(db, timeout),
	}
}

// Migrate creates or updates the tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.StoredThread{}, &domain.StoredMessage{}, &domain.ProviderCursorState{})
}

func (s *gormStore) Threads() ThreadRepository      { return s.threads }
func (s *gormStore) Messages() MessageRepository    { return s.msgs }
func (s *gormStore) Cursors() CursorStateRepository { return s.cursors }

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, s.timeout))
	})
}

// base carries the connection and the per-call timeout shared by the repositories
type base struct {
	db      *gorm.DB
	timeout time.Duration
}

func (b base) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	return b.db.WithContext(ctx), cancel
}
