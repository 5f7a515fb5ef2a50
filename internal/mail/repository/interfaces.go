package repository

import (
	"context"
	"time"

	"mailsync-backend/internal/mail/domain"
)

// ThreadRepository defines the interface for thread operations
type ThreadRepository interface {
	// FindByProviderThreadID returns the thread for (provider, providerThreadID), or nil
	FindByProviderThreadID(ctx context.Context, provider, providerThreadID string) (*domain.StoredThread, error)
	// FindSplitSiblings returns threads split off origin, most recently updated first
	FindSplitSiblings(ctx context.Context, provider, origin string) ([]domain.StoredThread, error)
	// CreateIfAbsent inserts the thread unless (provider, provider_thread_id) exists.
	// Returns true when this call created the row.
	CreateIfAbsent(ctx context.Context, thread *domain.StoredThread) (bool, error)
	UpdateSubject(ctx context.Context, id, subject string) error
	FindByID(ctx context.Context, id string) (*domain.StoredThread, error)
	Count(ctx context.Context, provider string) (int64, error)
}

// MessageRepository defines the interface for stored message operations
type MessageRepository interface {
	FindByProviderKey(ctx context.Context, provider, providerMessageID string) (*domain.StoredMessage, error)
	// ExistingProviderIDs reports which of the given provider message ids are already stored
	ExistingProviderIDs(ctx context.Context, provider string, providerMessageIDs []string) (map[string]bool, error)
	// CreateIfAbsent inserts the message unless (provider, provider_message_id) exists.
	// Returns true when this call created the row.
	CreateIfAbsent(ctx context.Context, msg *domain.StoredMessage) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.StoredMessage, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.StoredMessage, error)
	ListByThread(ctx context.Context, threadID string) ([]domain.StoredMessage, error)
	// ListUnnotified returns messages lacking the notified tag ingested since cutoff,
	// whatever their received time.
	ListUnnotified(ctx context.Context, cutoff time.Time, limit int) ([]domain.StoredMessage, error)
	// UpdateTags applies fn to the current tag set with compare-and-swap semantics
	UpdateTags(ctx context.Context, id string, fn func(domain.StringArray) domain.StringArray) (domain.StringArray, error)
	IncrementNotifyAttempts(ctx context.Context, id string) (int, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context, provider string) (int64, error)
}

// CursorStateRepository defines the interface for per-provider cursor state
type CursorStateRepository interface {
	// Get returns the provider's state, creating the row on first access
	Get(ctx context.Context, provider string) (*domain.ProviderCursorState, error)
	List(ctx context.Context) ([]domain.ProviderCursorState, error)
	// AdvanceCursor stores next if it does not move the provider backward.
	// Ordered cursors compare positions; opaque cursors require the stored version to
	// still equal expectedVersion. Returns domain.ErrStaleCursor when refused.
	AdvanceCursor(ctx context.Context, provider string, expectedVersion int64, next domain.Cursor, at time.Time) error
	// RecordPush stores a pushed cursor hint. Ordered hints never regress.
	RecordPush(ctx context.Context, provider string, pushed domain.Cursor, at time.Time) (*domain.ProviderCursorState, error)
	RecordPoll(ctx context.Context, provider string, at time.Time) error
	// SetHealth moves the provider to health unless it is already there.
	// Returns true when the stored state changed.
	SetHealth(ctx context.Context, provider string, health domain.HealthState, reason string) (bool, error)
	MarkNeedsResubscribe(ctx context.Context, provider string) error
	// Resubscribe resets the cursor, clears NeedsResubscribe and returns the provider to healthy
	Resubscribe(ctx context.Context, provider string, cursor domain.Cursor, watchExpiresAt *time.Time, at time.Time) error
	// RecordWatch stores a renewed push subscription expiry without touching the cursor
	RecordWatch(ctx context.Context, provider string, watchExpiresAt time.Time) error
}

// Store groups the repositories so a unit of work can run inside one transaction.
type Store interface {
	Threads() ThreadRepository
	Messages() MessageRepository
	Cursors() CursorStateRepository
	// Transaction runs fn with a Store bound to a single database transaction
	Transaction(ctx context.Context, fn func(Store) error) error
}
