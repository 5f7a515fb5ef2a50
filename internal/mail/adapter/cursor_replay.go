package adapter

import (
	"context"
	"fmt"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/normalizer"
	"mailsync-backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchConcurrency = 10
	defaultMaxPages         = 100
)

// CursorReplay lists changes since the stored cursor, then fetches each new record.
type CursorReplay struct {
	provider    string
	source      ChangeSource
	creds       CredentialProvider
	known       KnownFilter
	concurrency int
	maxPages    int
	now         func() time.Time
}

type CursorReplayOption func(*CursorReplay)

// WithFetchConcurrency bounds parallel FetchMessage calls.
func WithFetchConcurrency(n int) CursorReplayOption {
	return func(c *CursorReplay) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxPages bounds how many change pages one run may walk.
func WithMaxPages(n int) CursorReplayOption {
	return func(c *CursorReplay) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

func NewCursorReplay(provider string, source ChangeSource, creds CredentialProvider, known KnownFilter, opts ...CursorReplayOption) *CursorReplay {
	c := &CursorReplay{
		provider:    provider,
		source:      source,
		creds:       creds,
		known:       known,
		concurrency: defaultFetchConcurrency,
		maxPages:    defaultMaxPages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CursorReplay) Provider() string { return c.provider }
func (c *CursorReplay) Strategy() string { return StrategyCursorReplay }

func (c *CursorReplay) Watch(ctx context.Context) (domain.Cursor, *time.Time, error) {
	return watch(ctx, c.creds, c.provider, c.source)
}

// Run walks every change page after cursor. A record that is gone upstream or
// malformed is skipped; any other fetch failure aborts the run so the cursor stays put.
func (c *CursorReplay) Run(ctx context.Context, cursor domain.Cursor) (*Result, error) {
	cred, err := resolve(ctx, c.creds, c.provider)
	if err != nil {
		return nil, err
	}

	changes, next, err := c.collect(ctx, cred, cursor)
	if err != nil {
		return nil, err
	}

	changes, err = c.unknown(ctx, changes)
	if err != nil {
		return nil, err
	}

	raws := make([]normalizer.Raw, len(changes))
	failed := make([]bool, len(changes))
	log := logger.WithComponent("CursorReplay").WithField("provider", c.provider)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, ch := range changes {
		if ch.Raw != nil {
			raws[i] = ch.Raw
			continue
		}
		i, id := i, ch.ID
		g.Go(func() error {
			raw, err := c.source.FetchMessage(gctx, cred, id)
			if err != nil {
				if !domain.SkippableRecord(err) {
					return fmt.Errorf("fetch message %s: %w", id, err)
				}
				log.WithError(err).Warnf("Skipping message %s", id)
				failed[i] = true
				return nil
			}
			raws[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.now()
	res := &Result{Cursor: next}
	for i, raw := range raws {
		if failed[i] || raw == nil {
			res.Skipped++
			continue
		}
		res.Messages = append(res.Messages, raw.Normalize(now))
	}
	return res, nil
}

// collect pages through the change feed and returns the added records in feed
// order, without duplicates, along with the terminal cursor
func (c *CursorReplay) collect(ctx context.Context, cred domain.Credential, cursor domain.Cursor) ([]Change, domain.Cursor, error) {
	var (
		changes []Change
		seen    = make(map[string]bool)
		token   string
	)
	for pages := 1; ; pages++ {
		if pages > c.maxPages {
			return nil, domain.Cursor{}, fmt.Errorf("%s: change feed exceeded %d pages", c.provider, c.maxPages)
		}
		page, err := c.source.FetchChanges(ctx, cred, cursor, token)
		if err != nil {
			return nil, domain.Cursor{}, err
		}
		for _, ch := range page.Added {
			if ch.ID == "" || seen[ch.ID] {
				continue
			}
			seen[ch.ID] = true
			changes = append(changes, ch)
		}
		if page.NextPageToken == "" {
			if page.Cursor.IsZero() {
				return nil, domain.Cursor{}, fmt.Errorf("%s: change feed ended without a cursor", c.provider)
			}
			return changes, page.Cursor, nil
		}
		token = page.NextPageToken
	}
}

// unknown drops records that are already stored
func (c *CursorReplay) unknown(ctx context.Context, changes []Change) ([]Change, error) {
	if len(changes) == 0 || c.known == nil {
		return changes, nil
	}
	ids := make([]string, len(changes))
	for i, ch := range changes {
		ids[i] = ch.ID
	}
	known, err := c.known.ExistingProviderIDs(ctx, c.provider, ids)
	if err != nil {
		return nil, fmt.Errorf("check stored messages: %w", err)
	}
	out := changes[:0]
	for _, ch := range changes {
		if !known[ch.ID] {
			out = append(out, ch)
		}
	}
	return out, nil
}
