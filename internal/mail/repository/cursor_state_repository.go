package repository

import (
	"context"
	"errors"
	"time"

	"mailsync-backend/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cursorStateRepository implements CursorStateRepository interface
type cursorStateRepository struct {
	base
}

// NewCursorStateRepository creates a new instance of cursorStateRepository
func NewCursorStateRepository(db *gorm.DB, timeout time.Duration) CursorStateRepository {
	return &cursorStateRepository{base{db: db, timeout: timeout}}
}

func (r *cursorStateRepository) Get(ctx context.Context, provider string) (*domain.ProviderCursorState, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var state domain.ProviderCursorState
	err := db.Where("provider = ?", provider).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := domain.ProviderCursorState{
		Provider:  provider,
		Health:    domain.HealthHealthy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Another process may create the row concurrently
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	if err := db.Where("provider = ?", provider).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *cursorStateRepository) List(ctx context.Context) ([]domain.ProviderCursorState, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var states []domain.ProviderCursorState
	if err := db.Order("provider ASC").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

func (r *cursorStateRepository) AdvanceCursor(ctx context.Context, provider string, expectedVersion int64, next domain.Cursor, at time.Time) error {
	if _, err := r.Get(ctx, provider); err != nil {
		return err
	}

	// The guard lives in the UPDATE so concurrent writers serialize on the row
	var guard string
	var arg interface{}
	if next.Ordered() {
		guard, arg = "cursor_position < ?", next.Position
	} else {
		guard, arg = "version = ?", expectedVersion
	}

	swapped, err := r.swapCursor(ctx, provider, guard, arg, next, at)
	if err != nil {
		return err
	}
	if swapped {
		return nil
	}

	if next.Ordered() {
		state, err := r.Get(ctx, provider)
		if err != nil {
			return err
		}
		if state.CursorPosition == next.Position {
			return r.touchActivity(ctx, provider, at)
		}
	}
	return domain.ErrStaleCursor
}

func (r *cursorStateRepository) swapCursor(ctx context.Context, provider, guard string, arg interface{}, next domain.Cursor, at time.Time) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	result := db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Where(guard, arg).
		Updates(map[string]interface{}{
			"cursor":           next.Token,
			"cursor_position":  next.Position,
			"version":          gorm.Expr("version + 1"),
			"last_activity_at": at.UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *cursorStateRepository) touchActivity(ctx context.Context, provider string, at time.Time) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Update("last_activity_at", at.UTC()).Error
}

func (r *cursorStateRepository) RecordPush(ctx context.Context, provider string, pushed domain.Cursor, at time.Time) (*domain.ProviderCursorState, error) {
	if _, err := r.Get(ctx, provider); err != nil {
		return nil, err
	}

	db, cancel := r.conn(ctx)
	q := db.Model(&domain.ProviderCursorState{}).Where("provider = ?", provider)
	if pushed.Ordered() {
		q = q.Where("push_position < ?", pushed.Position)
	}
	err := q.Updates(map[string]interface{}{
		"push_cursor":   pushed.Token,
		"push_position": pushed.Position,
	}).Error
	if err == nil {
		err = db.Model(&domain.ProviderCursorState{}).
			Where("provider = ?", provider).
			Update("last_push_at", at.UTC()).Error
	}
	cancel()
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, provider)
}

func (r *cursorStateRepository) RecordPoll(ctx context.Context, provider string, at time.Time) error {
	if _, err := r.Get(ctx, provider); err != nil {
		return err
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Update("last_poll_at", at.UTC()).Error
}

func (r *cursorStateRepository) SetHealth(ctx context.Context, provider string, health domain.HealthState, reason string) (bool, error) {
	if _, err := r.Get(ctx, provider); err != nil {
		return false, err
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	// Conditional on the current health so only one caller observes the transition
	result := db.Model(&domain.ProviderCursorState{}).
		Where("provider = ? AND health <> ?", provider, string(health)).
		Updates(map[string]interface{}{
			"health":        string(health),
			"health_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *cursorStateRepository) MarkNeedsResubscribe(ctx context.Context, provider string) error {
	if _, err := r.Get(ctx, provider); err != nil {
		return err
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Update("needs_resubscribe", true).Error
}

func (r *cursorStateRepository) Resubscribe(ctx context.Context, provider string, cursor domain.Cursor, watchExpiresAt *time.Time, at time.Time) error {
	if _, err := r.Get(ctx, provider); err != nil {
		return err
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	var expiry interface{}
	if watchExpiresAt != nil {
		expiry = watchExpiresAt.UTC()
	}
	return db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Updates(map[string]interface{}{
			"cursor":            cursor.Token,
			"cursor_position":   cursor.Position,
			"version":           gorm.Expr("version + 1"),
			"push_cursor":       "",
			"push_position":     0,
			"watch_expires_at":  expiry,
			"needs_resubscribe": false,
			"health":            string(domain.HealthHealthy),
			"health_reason":     "",
			"last_activity_at":  at.UTC(),
		}).Error
}

func (r *cursorStateRepository) RecordWatch(ctx context.Context, provider string, watchExpiresAt time.Time) error {
	if _, err := r.Get(ctx, provider); err != nil {
		return err
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.ProviderCursorState{}).
		Where("provider = ?", provider).
		Update("watch_expires_at", watchExpiresAt.UTC()).Error
}
