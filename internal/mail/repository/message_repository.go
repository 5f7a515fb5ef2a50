package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailsync-backend/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTagRetries bounds the compare-and-swap loop on a message's tag set
const maxTagRetries = 8

// messageRepository implements MessageRepository interface
type messageRepository struct {
	base
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB, timeout time.Duration) MessageRepository {
	return &messageRepository{base{db: db, timeout: timeout}}
}

func (r *messageRepository) FindByProviderKey(ctx context.Context, provider, providerMessageID string) (*domain.StoredMessage, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var msg domain.StoredMessage
	err := db.Where("provider = ? AND provider_message_id = ?", provider, providerMessageID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ExistingProviderIDs(ctx context.Context, provider string, providerMessageIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(providerMessageIDs))
	if len(providerMessageIDs) == 0 {
		return result, nil
	}

	db, cancel := r.conn(ctx)
	defer cancel()

	var found []string
	err := db.Model(&domain.StoredMessage{}).
		Where("provider = ? AND provider_message_id IN ?", provider, providerMessageIDs).
		Pluck("provider_message_id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}

func (r *messageRepository) CreateIfAbsent(ctx context.Context, msg *domain.StoredMessage) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Tags == nil {
		msg.Tags = domain.StringArray{}
	}

	// INSERT ... ON CONFLICT (provider, provider_message_id) DO NOTHING
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_message_id"}},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.StoredMessage, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var msg domain.StoredMessage
	if err := db.Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.StoredMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()

	var msgs []domain.StoredMessage
	if err := db.Where("id IN ?", ids).Order("received_at ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.StoredMessage, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var msgs []domain.StoredMessage
	err := db.Where("thread_id = ?", threadID).Order("received_at ASC").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) ListUnnotified(ctx context.Context, cutoff time.Time, limit int) ([]domain.StoredMessage, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	cutoff = cutoff.UTC()
	var msgs []domain.StoredMessage
	// Windowed by ingestion time: a late or backfilled message is as new to us as any other
	err := db.Where("tags NOT LIKE ?", `%"`+domain.TagNotified+`"%`).
		Where("created_at >= ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) UpdateTags(ctx context.Context, id string, fn func(domain.StringArray) domain.StringArray) (domain.StringArray, error) {
	for attempt := 0; attempt < maxTagRetries; attempt++ {
		msg, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, fmt.Errorf("message %s not found", id)
		}

		current := msg.Tags
		if current == nil {
			current = domain.StringArray{}
		}
		next := fn(current)
		if next == nil {
			next = domain.StringArray{}
		}
		if equalTags(current, next) {
			return current, nil
		}

		swapped, err := r.swapTags(ctx, id, current, next)
		if err != nil {
			return nil, err
		}
		if swapped {
			return next, nil
		}
	}
	return nil, fmt.Errorf("message %s: tag update lost %d races", id, maxTagRetries)
}

// swapTags writes next only if the stored tag set still equals current
func (r *messageRepository) swapTags(ctx context.Context, id string, current, next domain.StringArray) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	result := db.Model(&domain.StoredMessage{}).
		Where("id = ? AND tags = ?", id, current).
		Update("tags", next)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) IncrementNotifyAttempts(ctx context.Context, id string) (int, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	result := db.Model(&domain.StoredMessage{}).
		Where("id = ?", id).
		Update("notify_attempts", gorm.Expr("notify_attempts + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, fmt.Errorf("message %s not found", id)
	}

	var attempts []int
	if err := db.Model(&domain.StoredMessage{}).Where("id = ?", id).Pluck("notify_attempts", &attempts).Error; err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 0, fmt.Errorf("message %s not found", id)
	}
	return attempts[0], nil
}

func (r *messageRepository) Touch(ctx context.Context, id string, at time.Time) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.StoredMessage{}).Where("id = ?", id).Update("last_accessed_at", at.UTC()).Error
}

func (r *messageRepository) Count(ctx context.Context, provider string) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var n int64
	q := db.Model(&domain.StoredMessage{})
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	err := q.Count(&n).Error
	return n, err
}

func equalTags(a, b domain.StringArray) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
