package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mailsync-backend/internal/mail/adapter"
	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/internal/testutil"
)

type fakeAdapter struct {
	mu       sync.Mutex
	provider string
	result   *adapter.Result
	err      error
	block    bool
	cursors  []domain.Cursor
	watch    domain.Cursor
	watchErr error
	watchExp *time.Time
}

func (f *fakeAdapter) Provider() string { return f.provider }
func (f *fakeAdapter) Strategy() string { return adapter.StrategyCursorReplay }

func (f *fakeAdapter) Run(ctx context.Context, cursor domain.Cursor) (*adapter.Result, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	block, result, err := f.block, f.result, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeAdapter) Watch(ctx context.Context) (domain.Cursor, *time.Time, error) {
	if f.watchErr != nil {
		return domain.Cursor{}, nil, f.watchErr
	}
	return f.watch, f.watchExp, nil
}

func (f *fakeAdapter) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cursors)
}

type recordingSender struct {
	mu      sync.Mutex
	fail    bool
	batches [][]usecase.DigestItem
}

func (s *recordingSender) SendDigest(ctx context.Context, items []usecase.DigestItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, items)
	if s.fail {
		return errors.New("fcm unavailable")
	}
	return nil
}

func (s *recordingSender) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *recordingSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type alert struct {
	provider string
	reason   string
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert
}

func (a *recordingAlerter) Alert(ctx context.Context, provider, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert{provider: provider, reason: reason})
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type recordingTrigger struct {
	mu   sync.Mutex
	jobs []usecase.TriggerJob
}

func (r *recordingTrigger) QueueJob(job usecase.TriggerJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return true
}

func msg(provider, id, threadID, subject string) domain.NormalizedMessage {
	return domain.NormalizedMessage{
		Provider:          provider,
		ProviderMessageID: id,
		ProviderThreadID:  threadID,
		Subject:           subject,
		FromEmail:         "alice@example.com",
		Preview:           "preview of " + id,
		ReceivedAt:        time.Now().UTC(),
	}
}

type env struct {
	store      repository.Store
	ingest     *usecase.IngestService
	tracker    *usecase.StateTracker
	dispatcher *usecase.Dispatcher
	sender     *recordingSender
	alerter    *recordingAlerter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := testutil.NewTestStore(t)
	sender := &recordingSender{}
	alerter := &recordingAlerter{}
	return &env{
		store:   store,
		ingest:  usecase.NewIngestService(store, usecase.NewThreadReconciler(usecase.StrictSubjectsRelated)),
		tracker: usecase.NewStateTracker(store.Cursors(), alerter),
		dispatcher: usecase.NewDispatcher(store.Messages(), sender, alerter, usecase.DispatcherConfig{
			Window:      time.Hour,
			Batch:       10,
			MaxAttempts: 2,
		}),
		sender:  sender,
		alerter: alerter,
	}
}

func (e *env) sync(adapters ...adapter.Adapter) usecase.SyncUsecase {
	return e.syncWith(e.ingest, 10*time.Second, adapters...)
}

func (e *env) syncWith(ingest *usecase.IngestService, cycleTimeout time.Duration, adapters ...adapter.Adapter) usecase.SyncUsecase {
	return usecase.NewSyncUsecase(e.store, adapters, ingest, e.tracker, e.dispatcher, usecase.SyncConfig{
		CycleTimeout: cycleTimeout,
		Accounts:     map[string]string{"Me@Example.com": "gmail"},
	})
}

// flakyStore fails its failOn-th transaction
type flakyStore struct {
	repository.Store
	mu     sync.Mutex
	calls  int
	failOn int
}

func (s *flakyStore) Transaction(ctx context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == s.failOn {
		return errors.New("database is unavailable")
	}
	return s.Store.Transaction(ctx, fn)
}
