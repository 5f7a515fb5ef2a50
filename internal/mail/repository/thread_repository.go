package repository

import (
	"context"
	"errors"
	"time"

	"mailsync-backend/internal/mail/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// threadRepository implements ThreadRepository interface
type threadRepository struct {
	base
}

// NewThreadRepository creates a new instance of threadRepository
func NewThreadRepository(db *gorm.DB, timeout time.Duration) ThreadRepository {
	return &threadRepository{base{db: db, timeout: timeout}}
}

func (r *threadRepository) FindByProviderThreadID(ctx context.Context, provider, providerThreadID string) (*domain.StoredThread, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var thread domain.StoredThread
	err := db.Where("provider = ? AND provider_thread_id = ? AND deleted_at IS NULL", provider, providerThreadID).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) FindSplitSiblings(ctx context.Context, provider, origin string) ([]domain.StoredThread, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var threads []domain.StoredThread
	err := db.Where("provider = ? AND origin_thread_id = ? AND provider_thread_id <> ? AND deleted_at IS NULL", provider, origin, origin).
		Order("updated_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *threadRepository) CreateIfAbsent(ctx context.Context, thread *domain.StoredThread) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	// INSERT ... ON CONFLICT (provider, provider_thread_id) DO NOTHING
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_thread_id"}},
		DoNothing: true,
	}).Create(thread)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *threadRepository) UpdateSubject(ctx context.Context, id, subject string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Model(&domain.StoredThread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"subject_last": subject, "updated_at": time.Now().UTC()}).Error
}

func (r *threadRepository) FindByID(ctx context.Context, id string) (*domain.StoredThread, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var thread domain.StoredThread
	if err := db.Where("id = ?", id).First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) Count(ctx context.Context, provider string) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var n int64
	q := db.Model(&domain.StoredThread{})
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	err := q.Count(&n).Error
	return n, err
}
