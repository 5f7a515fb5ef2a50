package usecase

import (
	"context"
	"errors"
	"fmt"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"

	"github.com/google/uuid"
)

// IngestResult reports where a message was stored and whether this call created it.
type IngestResult struct {
	ID       string
	ThreadID string
	Created  bool
}

// errAlreadyStored rolls back the placement transaction when a concurrent
// ingest inserted the same message first
var errAlreadyStored = errors.New("message already stored")

// IngestService is the idempotent entry point for normalized messages.
type IngestService struct {
	store      repository.Store
	reconciler *ThreadReconciler
}

func NewIngestService(store repository.Store, reconciler *ThreadReconciler) *IngestService {
	return &IngestService{store: store, reconciler: reconciler}
}

// Ingest stores nm once per (provider, provider_message_id). Repeated or concurrent
// calls for the same key return the first stored id with Created=false.
func (s *IngestService) Ingest(ctx context.Context, nm domain.NormalizedMessage) (IngestResult, error) {
	if nm.Provider == "" || nm.ProviderMessageID == "" {
		return IngestResult{}, fmt.Errorf("%w: provider and provider message id are required", domain.ErrInvalidMessage)
	}

	if existing, err := s.lookup(ctx, nm); err != nil || existing != nil {
		return s.result(existing), err
	}

	threadKey := nm.ProviderThreadID
	if threadKey == "" {
		threadKey = nm.ProviderMessageID
	}

	var res IngestResult
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		thread, err := s.reconciler.Resolve(ctx, tx, nm.Provider, threadKey, nm.Subject)
		if err != nil {
			return err
		}

		msg := domain.NewStoredMessage(uuid.New().String(), thread.ID, nm)
		created, err := tx.Messages().CreateIfAbsent(ctx, msg)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if !created {
			return errAlreadyStored
		}
		res = IngestResult{ID: msg.ID, ThreadID: thread.ID, Created: true}
		return nil
	})

	if errors.Is(err, errAlreadyStored) {
		existing, lookupErr := s.lookup(ctx, nm)
		if lookupErr != nil {
			return IngestResult{}, lookupErr
		}
		if existing == nil {
			return IngestResult{}, fmt.Errorf("message %s/%s conflicted but is not stored", nm.Provider, nm.ProviderMessageID)
		}
		return s.result(existing), nil
	}
	if err != nil {
		return IngestResult{}, err
	}
	return res, nil
}

func (s *IngestService) lookup(ctx context.Context, nm domain.NormalizedMessage) (*domain.StoredMessage, error) {
	existing, err := s.store.Messages().FindByProviderKey(ctx, nm.Provider, nm.ProviderMessageID)
	if err != nil {
		return nil, fmt.Errorf("lookup message: %w", err)
	}
	return existing, nil
}

func (s *IngestService) result(m *domain.StoredMessage) IngestResult {
	if m == nil {
		return IngestResult{}
	}
	return IngestResult{ID: m.ID, ThreadID: m.ThreadID}
}
