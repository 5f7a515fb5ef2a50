package usecase

import (
	"context"
	"errors"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/pkg/logger"
)

// Alerter delivers operator alerts. Only transitions into down and exhausted
// notifications are alerted.
type Alerter interface {
	Alert(ctx context.Context, provider, reason string) error
}

// StateTracker owns cursor and health transitions for every provider.
type StateTracker struct {
	cursors repository.CursorStateRepository
	alerter Alerter
	now     func() time.Time
}

func NewStateTracker(cursors repository.CursorStateRepository, alerter Alerter) *StateTracker {
	return &StateTracker{cursors: cursors, alerter: alerter, now: time.Now}
}

func (t *StateTracker) Load(ctx context.Context, provider string) (*domain.ProviderCursorState, error) {
	return t.cursors.Get(ctx, provider)
}

func (t *StateTracker) List(ctx context.Context) ([]domain.ProviderCursorState, error) {
	return t.cursors.List(ctx)
}

func (t *StateTracker) RecordPoll(ctx context.Context, provider string) error {
	return t.cursors.RecordPoll(ctx, provider, t.now().UTC())
}

func (t *StateTracker) RecordPush(ctx context.Context, provider string, pushed domain.Cursor) (*domain.ProviderCursorState, error) {
	return t.cursors.RecordPush(ctx, provider, pushed, t.now().UTC())
}

// RecordSuccess stores next after its batch was persisted and returns the provider
// to healthy. A refused advance means a concurrent cycle got further and is not a failure.
func (t *StateTracker) RecordSuccess(ctx context.Context, provider string, expectedVersion int64, next domain.Cursor) (advanced bool, err error) {
	log := logger.WithComponent("StateTracker").WithField("provider", provider)

	if !next.IsZero() {
		err := t.cursors.AdvanceCursor(ctx, provider, expectedVersion, next, t.now().UTC())
		switch {
		case errors.Is(err, domain.ErrStaleCursor):
			log.WithField("cursor", next.Token).Info("Cursor already past this batch, keeping stored cursor")
		case err != nil:
			return false, err
		default:
			advanced = true
		}
	}

	if changed, err := t.cursors.SetHealth(ctx, provider, domain.HealthHealthy, ""); err != nil {
		return advanced, err
	} else if changed {
		log.Info("Provider recovered")
	}
	return advanced, nil
}

// RecordFailure classifies err, stores the resulting health and alerts when this
// call moved the provider into down.
func (t *StateTracker) RecordFailure(ctx context.Context, provider string, cause error) domain.HealthState {
	log := logger.WithComponent("StateTracker").WithField("provider", provider)

	health := domain.HealthDegraded
	switch domain.ClassifyError(cause) {
	case domain.ErrorStaleCursor:
		health = domain.HealthDown
		if err := t.cursors.MarkNeedsResubscribe(ctx, provider); err != nil {
			log.WithError(err).Error("Failed to flag provider for resubscription")
		}
	case domain.ErrorAuth:
		health = domain.HealthDown
	}

	changed, err := t.cursors.SetHealth(ctx, provider, health, cause.Error())
	if err != nil {
		log.WithError(err).Error("Failed to store provider health")
		return health
	}

	if health == domain.HealthDown && changed {
		log.WithError(cause).Warn("Provider is down")
		t.alert(ctx, provider, cause.Error())
	} else {
		log.WithError(cause).WithField("health", health).Warn("Sync cycle failed")
	}
	return health
}

// Resubscribe installs a fresh cursor and clears the resubscription flag.
func (t *StateTracker) Resubscribe(ctx context.Context, provider string, cursor domain.Cursor, watchExpiresAt *time.Time) error {
	return t.cursors.Resubscribe(ctx, provider, cursor, watchExpiresAt, t.now().UTC())
}

func (t *StateTracker) RecordWatch(ctx context.Context, provider string, expiresAt time.Time) error {
	return t.cursors.RecordWatch(ctx, provider, expiresAt)
}

func (t *StateTracker) alert(ctx context.Context, provider, reason string) {
	if t.alerter == nil {
		return
	}
	if err := t.alerter.Alert(ctx, provider, reason); err != nil {
		logger.WithComponent("StateTracker").WithError(err).WithField("provider", provider).Error("Failed to send alert")
	}
}
