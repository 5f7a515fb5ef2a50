package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"

	"github.com/google/uuid"
)

// errThreadKeyRetired means a deleted thread still holds the provider key
var errThreadKeyRetired = errors.New("thread key held by a deleted thread")

// ThreadReconciler places messages into threads and splits provider thread ids
// that were reused for an unrelated conversation.
type ThreadReconciler struct {
	related RelatednessFunc
	now     func() time.Time
}

func NewThreadReconciler(related RelatednessFunc) *ThreadReconciler {
	if related == nil {
		related = StrictSubjectsRelated
	}
	return &ThreadReconciler{related: related, now: time.Now}
}

// Resolve returns the thread the message belongs to, creating one when needed.
// store may be transaction-bound.
func (r *ThreadReconciler) Resolve(ctx context.Context, store repository.Store, provider, providerThreadID, subject string) (*domain.StoredThread, error) {
	threads := store.Threads()

	existing, err := threads.FindByProviderThreadID(ctx, provider, providerThreadID)
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	if existing == nil {
		thread, err := r.create(ctx, threads, provider, providerThreadID, providerThreadID, subject)
		if !errors.Is(err, errThreadKeyRetired) {
			return thread, err
		}
		// The conversation continues in a split of the deleted thread
		return r.split(ctx, threads, provider, providerThreadID, subject)
	}

	// An empty subject on either side carries no signal
	if subject == "" || existing.SubjectLast == "" {
		return r.touch(ctx, threads, existing, subject)
	}
	if r.related(existing.SubjectLast, subject) {
		return r.touch(ctx, threads, existing, subject)
	}

	origin := existing.OriginThreadID
	if origin == "" {
		origin = providerThreadID
	}
	return r.split(ctx, threads, provider, origin, subject)
}

// split reuses a related thread split from origin, most recent first, or mints a new one
func (r *ThreadReconciler) split(ctx context.Context, threads repository.ThreadRepository, provider, origin, subject string) (*domain.StoredThread, error) {
	siblings, err := threads.FindSplitSiblings(ctx, provider, origin)
	if err != nil {
		return nil, fmt.Errorf("find split threads: %w", err)
	}
	for i := range siblings {
		if subject == "" || siblings[i].SubjectLast == "" || r.related(siblings[i].SubjectLast, subject) {
			return r.touch(ctx, threads, &siblings[i], subject)
		}
	}

	splitID := fmt.Sprintf("%s_%d", origin, r.now().UnixNano())
	return r.create(ctx, threads, provider, splitID, origin, subject)
}

// touch applies most-recent-wins to the stored subject
func (r *ThreadReconciler) touch(ctx context.Context, threads repository.ThreadRepository, thread *domain.StoredThread, subject string) (*domain.StoredThread, error) {
	if subject == "" || subject == thread.SubjectLast {
		return thread, nil
	}
	if err := threads.UpdateSubject(ctx, thread.ID, subject); err != nil {
		return nil, fmt.Errorf("update thread subject: %w", err)
	}
	thread.SubjectLast = subject
	return thread, nil
}

func (r *ThreadReconciler) create(ctx context.Context, threads repository.ThreadRepository, provider, providerThreadID, origin, subject string) (*domain.StoredThread, error) {
	now := r.now().UTC()
	ptid := providerThreadID
	thread := &domain.StoredThread{
		ID:               uuid.New().String(),
		Provider:         provider,
		ProviderThreadID: &ptid,
		OriginThreadID:   origin,
		SubjectLast:      subject,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := threads.CreateIfAbsent(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	if created {
		return thread, nil
	}

	// Lost the race to a concurrent writer: use its row
	winner, err := threads.FindByProviderThreadID(ctx, provider, providerThreadID)
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("%w: %s/%s", errThreadKeyRetired, provider, providerThreadID)
	}
	return winner, nil
}
