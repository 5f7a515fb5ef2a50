package adapter

import (
	"context"
	"time"

	"mailsync-backend/internal/mail/domain"
)

const defaultFetchCount = 20

// FullRefetch fetches the newest messages each run and relies on ingest
// idempotency to discard what was already stored.
type FullRefetch struct {
	provider string
	source   RecentSource
	creds    CredentialProvider
	count    int
	now      func() time.Time
}

func NewFullRefetch(provider string, source RecentSource, creds CredentialProvider, count int) *FullRefetch {
	if count <= 0 {
		count = defaultFetchCount
	}
	return &FullRefetch{provider: provider, source: source, creds: creds, count: count, now: time.Now}
}

func (f *FullRefetch) Provider() string { return f.provider }
func (f *FullRefetch) Strategy() string { return StrategyFullRefetch }

func (f *FullRefetch) Watch(ctx context.Context) (domain.Cursor, *time.Time, error) {
	return watch(ctx, f.creds, f.provider, f.source)
}

func (f *FullRefetch) Run(ctx context.Context, cursor domain.Cursor) (*Result, error) {
	cred, err := resolve(ctx, f.creds, f.provider)
	if err != nil {
		return nil, err
	}

	raws, next, err := f.source.FetchRecent(ctx, cred, f.count, cursor)
	if err != nil {
		return nil, err
	}

	now := f.now()
	res := &Result{Cursor: next}
	for _, raw := range raws {
		res.Messages = append(res.Messages, raw.Normalize(now))
	}
	return res, nil
}
