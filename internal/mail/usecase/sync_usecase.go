package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailsync-backend/internal/mail/adapter"
	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// watchRenewMargin is how long before expiry a push subscription is renewed.
const watchRenewMargin = 24 * time.Hour

// failureRecordTimeout bounds health bookkeeping that runs after the cycle
// context may already have expired.
const failureRecordTimeout = 10 * time.Second

// CycleReport describes one ingestion cycle for one provider.
type CycleReport struct {
	Provider       string             `json:"provider"`
	Strategy       string             `json:"strategy"`
	Fetched        int                `json:"fetched"`
	Created        int                `json:"created"`
	Duplicates     int                `json:"duplicates"`
	Skipped        int                `json:"skipped"`
	CursorAdvanced bool               `json:"cursor_advanced"`
	Health         domain.HealthState `json:"health"`
	SkippedReason  string             `json:"skipped_reason,omitempty"`
	Error          string             `json:"error,omitempty"`
	Duration       time.Duration      `json:"duration"`
}

// ProviderStatus is the admin view of a provider.
type ProviderStatus struct {
	domain.ProviderCursorState
	Strategy string `json:"strategy"`
	Threads  int64  `json:"threads"`
	Messages int64  `json:"messages"`
}

// SyncConfig carries the knobs of the sync usecase.
type SyncConfig struct {
	CycleTimeout time.Duration
	// Accounts maps a push notification's mailbox address to a provider name
	Accounts map[string]string
}

type syncUsecase struct {
	store      repository.Store
	adapters   map[string]adapter.Adapter
	order      []string
	ingest     *IngestService
	tracker    *StateTracker
	dispatcher *Dispatcher
	trigger    Trigger
	cfg        SyncConfig
}

// NewSyncUsecase creates a new instance of SyncUsecase
func NewSyncUsecase(store repository.Store, adapters []adapter.Adapter, ingest *IngestService, tracker *StateTracker, dispatcher *Dispatcher, cfg SyncConfig) SyncUsecase {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	accounts := make(map[string]string, len(cfg.Accounts))
	for account, provider := range cfg.Accounts {
		accounts[strings.ToLower(account)] = provider
	}
	cfg.Accounts = accounts

	u := &syncUsecase{
		store:      store,
		adapters:   make(map[string]adapter.Adapter, len(adapters)),
		ingest:     ingest,
		tracker:    tracker,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
	for _, a := range adapters {
		u.adapters[a.Provider()] = a
		u.order = append(u.order, a.Provider())
	}
	return u
}

func (u *syncUsecase) SetTrigger(trigger Trigger) {
	u.trigger = trigger
}

// RunCycle fetches, stores, notifies and advances the cursor for one provider.
// The cursor only moves after every fetched message is stored.
func (u *syncUsecase) RunCycle(ctx context.Context, provider string) (*CycleReport, error) {
	a, ok := u.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	started := time.Now()
	report := &CycleReport{Provider: provider, Strategy: a.Strategy()}
	defer func() { report.Duration = time.Since(started) }()

	log := logger.WithComponent("SyncCycle").WithField("provider", provider)

	ctx, cancel := context.WithTimeout(ctx, u.cfg.CycleTimeout)
	defer cancel()

	state, err := u.tracker.Load(ctx, provider)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("load provider state: %w", err)
	}
	report.Health = state.Health

	if state.NeedsResubscribe {
		report.SkippedReason = "resubscribe required"
		log.Debug("Skipping cycle until provider is resubscribed")
		return report, domain.ErrResubscribeRequired
	}

	if err := u.tracker.RecordPoll(ctx, provider); err != nil {
		log.WithError(err).Warn("Failed to record poll time")
	}

	res, err := a.Run(ctx, state.CurrentCursor())
	if err != nil {
		report.Health = u.recordFailure(ctx, provider, err)
		report.Error = err.Error()
		return report, err
	}
	report.Fetched = len(res.Messages)
	report.Skipped = res.Skipped

	var (
		created    []string
		storageErr error
	)
	for _, nm := range res.Messages {
		r, err := u.ingest.Ingest(ctx, nm)
		if errors.Is(err, domain.ErrInvalidMessage) {
			log.WithError(err).Warn("Skipping record")
			report.Skipped++
			continue
		}
		if err != nil {
			storageErr = err
			break
		}
		if r.Created {
			created = append(created, r.ID)
		} else {
			report.Duplicates++
		}
	}
	report.Created = len(created)

	// Stored messages are notified even when a later record failed and the
	// cursor stays put; the replay finds them as duplicates and does not notify twice.
	if len(created) > 0 {
		if err := u.dispatcher.Dispatch(ctx, created); err != nil {
			log.WithError(err).Warn("Notification dispatch failed, sweep will retry")
		}
	}

	if storageErr != nil {
		report.Health = u.recordFailure(ctx, provider, storageErr)
		report.Error = storageErr.Error()
		return report, storageErr
	}

	advanced, err := u.tracker.RecordSuccess(ctx, provider, state.Version, res.Cursor)
	report.CursorAdvanced = advanced
	if err != nil {
		report.Health = u.recordFailure(ctx, provider, err)
		report.Error = err.Error()
		return report, err
	}
	report.Health = domain.HealthHealthy

	if report.Created > 0 || report.Skipped > 0 {
		log.WithField("fetched", report.Fetched).
			WithField("created", report.Created).
			WithField("duplicates", report.Duplicates).
			WithField("skipped", report.Skipped).
			Info("Sync cycle finished")
	}
	return report, nil
}

// recordFailure records health on a fresh context so a cycle that ran out of
// time still leaves its failure behind.
func (u *syncUsecase) recordFailure(ctx context.Context, provider string, cause error) domain.HealthState {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()
	return u.tracker.RecordFailure(ctx, provider, cause)
}

// RunAll runs one cycle per provider concurrently. A failing provider never
// stops the others.
func (u *syncUsecase) RunAll(ctx context.Context) []CycleReport {
	reports := make([]CycleReport, len(u.order))
	var g errgroup.Group
	for i, provider := range u.order {
		g.Go(func() error {
			report, err := u.RunCycle(ctx, provider)
			if report != nil {
				reports[i] = *report
			} else {
				reports[i] = CycleReport{Provider: provider}
			}
			if err != nil && reports[i].Error == "" && !errors.Is(err, domain.ErrResubscribeRequired) {
				reports[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Resubscribe renews the provider's push subscription and clears the resubscription
// flag. Providers without a watch restart from fallback, which may be zero.
func (u *syncUsecase) Resubscribe(ctx context.Context, provider string, fallback domain.Cursor) (*domain.ProviderCursorState, error) {
	a, ok := u.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	cursor, expires, err := a.Watch(ctx)
	if errors.Is(err, domain.ErrWatchUnsupported) {
		cursor, expires = fallback, nil
	} else if err != nil {
		return nil, err
	}
	if err := u.tracker.Resubscribe(ctx, provider, cursor, expires); err != nil {
		return nil, err
	}

	logger.WithComponent("SyncCycle").WithField("provider", provider).
		WithField("cursor", cursor.Token).Info("Provider resubscribed")
	return u.tracker.Load(ctx, provider)
}

// RenewWatches extends push subscriptions that expire soon. The cursor is left alone.
func (u *syncUsecase) RenewWatches(ctx context.Context) error {
	var errs []error
	for _, provider := range u.order {
		state, err := u.tracker.Load(ctx, provider)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if state.WatchExpiresAt == nil || state.NeedsResubscribe {
			continue
		}
		if time.Until(*state.WatchExpiresAt) > watchRenewMargin {
			continue
		}

		_, expires, err := u.adapters[provider].Watch(ctx)
		if errors.Is(err, domain.ErrWatchUnsupported) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("renew watch for %s: %w", provider, err))
			continue
		}
		if expires != nil {
			if err := u.tracker.RecordWatch(ctx, provider, *expires); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (u *syncUsecase) Sweep(ctx context.Context) (*SweepResult, error) {
	return u.dispatcher.Sweep(ctx)
}

func (u *syncUsecase) Providers(ctx context.Context) ([]ProviderStatus, error) {
	out := make([]ProviderStatus, 0, len(u.order))
	for _, provider := range u.order {
		state, err := u.tracker.Load(ctx, provider)
		if err != nil {
			return nil, err
		}
		threads, err := u.store.Threads().Count(ctx, provider)
		if err != nil {
			return nil, err
		}
		messages, err := u.store.Messages().Count(ctx, provider)
		if err != nil {
			return nil, err
		}
		out = append(out, ProviderStatus{
			ProviderCursorState: *state,
			Strategy:            u.adapters[provider].Strategy(),
			Threads:             threads,
			Messages:            messages,
		})
	}
	return out, nil
}
