package usecase

import (
	"context"
	"errors"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/pkg/logger"
)

// ErrNotFound is returned when a message or thread does not exist
var ErrNotFound = errors.New("not found")

type messageUsecase struct {
	store repository.Store
	now   func() time.Time
}

// NewMessageUsecase creates a new instance of MessageUsecase
func NewMessageUsecase(store repository.Store) MessageUsecase {
	return &messageUsecase{store: store, now: time.Now}
}

// GetMessage returns a stored message and records the access
func (u *messageUsecase) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	msg, err := u.store.Messages().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}

	at := u.now().UTC()
	if err := u.store.Messages().Touch(ctx, id, at); err != nil {
		logger.WithComponent("Messages").WithError(err).WithField("message_id", id).Warn("Failed to record access")
	} else {
		msg.LastAccessedAt = &at
	}
	return msg, nil
}

func (u *messageUsecase) GetThread(ctx context.Context, id string) (*domain.StoredThread, []domain.StoredMessage, error) {
	thread, err := u.store.Threads().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if thread == nil {
		return nil, nil, ErrNotFound
	}
	msgs, err := u.store.Messages().ListByThread(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return thread, msgs, nil
}

// UpdateTags adds and removes user tags. Lifecycle tags written by the
// dispatcher are accepted like any other tag.
func (u *messageUsecase) UpdateTags(ctx context.Context, id string, add, remove []string) (domain.StringArray, error) {
	msg, err := u.store.Messages().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	return u.store.Messages().UpdateTags(ctx, id, func(tags domain.StringArray) domain.StringArray {
		for _, t := range remove {
			tags = tags.Without(t)
		}
		for _, t := range add {
			if t != "" {
				tags = tags.With(t)
			}
		}
		return tags
	})
}
