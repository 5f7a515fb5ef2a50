package usecase

import (
	"context"

	"mailsync-backend/internal/mail/domain"
)

// SyncUsecase drives ingestion cycles, push intake and the notification sweep
type SyncUsecase interface {
	RunCycle(ctx context.Context, provider string) (*CycleReport, error)
	RunAll(ctx context.Context) []CycleReport
	HandlePush(ctx context.Context, account string, pushed domain.Cursor) (*PushOutcome, error)
	Resubscribe(ctx context.Context, provider string, fallback domain.Cursor) (*domain.ProviderCursorState, error)
	RenewWatches(ctx context.Context) error
	Sweep(ctx context.Context) (*SweepResult, error)
	Providers(ctx context.Context) ([]ProviderStatus, error)
	SetTrigger(trigger Trigger)
}

// MessageUsecase serves stored messages to the admin API
type MessageUsecase interface {
	GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error)
	GetThread(ctx context.Context, id string) (*domain.StoredThread, []domain.StoredMessage, error)
	UpdateTags(ctx context.Context, id string, add, remove []string) (domain.StringArray, error)
}

// Trigger schedules background work. QueueJob never blocks.
type Trigger interface {
	QueueJob(job TriggerJob) bool
}
