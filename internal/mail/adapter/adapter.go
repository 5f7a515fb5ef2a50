// Package adapter turns provider APIs into batches of normalized messages plus the
// cursor to store once the batch is persisted.
package adapter

import (
	"context"
	"fmt"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/normalizer"
)

// Strategy names how an adapter decides what is new.
const (
	StrategyCursorReplay = "cursor_replay"
	StrategyFullRefetch  = "full_refetch"
)

// CredentialProvider resolves the credential for a provider before every cycle.
type CredentialProvider interface {
	Resolve(ctx context.Context, provider string) domain.CredentialResult
}

// KnownFilter reports which provider message ids are already stored.
type KnownFilter interface {
	ExistingProviderIDs(ctx context.Context, provider string, providerMessageIDs []string) (map[string]bool, error)
}

// Change is one added record from a change feed. Raw is set when the feed
// already carries the full payload.
type Change struct {
	ID  string
	Raw normalizer.Raw
}

// ChangePage is one page of a change feed. Cursor is only set on the last page.
type ChangePage struct {
	Added         []Change
	NextPageToken string
	Cursor        domain.Cursor
}

// ChangeSource is a provider that can list changes since a cursor.
type ChangeSource interface {
	FetchChanges(ctx context.Context, cred domain.Credential, cursor domain.Cursor, pageToken string) (*ChangePage, error)
	FetchMessage(ctx context.Context, cred domain.Credential, id string) (normalizer.Raw, error)
}

// RecentSource is a provider that can only return its newest messages.
type RecentSource interface {
	FetchRecent(ctx context.Context, cred domain.Credential, count int, cursor domain.Cursor) ([]normalizer.Raw, domain.Cursor, error)
}

// Watcher is implemented by sources with a push subscription that must be renewed.
type Watcher interface {
	Watch(ctx context.Context, cred domain.Credential) (domain.Cursor, *time.Time, error)
}

// Result is the outcome of one adapter run. Cursor may be zero when the provider
// has no resumable position.
type Result struct {
	Messages []domain.NormalizedMessage
	Cursor   domain.Cursor
	Skipped  int
}

// Adapter fetches everything new for one provider.
type Adapter interface {
	Provider() string
	Strategy() string
	Run(ctx context.Context, cursor domain.Cursor) (*Result, error)
	// Watch renews the provider's push subscription and returns its baseline cursor
	Watch(ctx context.Context) (domain.Cursor, *time.Time, error)
}

// resolve converts a credential result into a usable credential or a classified error
func resolve(ctx context.Context, creds CredentialProvider, provider string) (domain.Credential, error) {
	res := creds.Resolve(ctx, provider)
	switch res.Status {
	case domain.CredentialsOK:
		return res.Credential, nil
	case domain.CredentialsRequired:
		return domain.Credential{}, fmt.Errorf("%w: %s", domain.ErrCredentialsRequired, res.Reason)
	default:
		if res.Err != nil {
			return domain.Credential{}, fmt.Errorf("resolve credentials for %s: %w", provider, res.Err)
		}
		return domain.Credential{}, fmt.Errorf("resolve credentials for %s: %s", provider, res.Reason)
	}
}

func watch(ctx context.Context, creds CredentialProvider, provider string, src interface{}) (domain.Cursor, *time.Time, error) {
	w, ok := src.(Watcher)
	if !ok {
		return domain.Cursor{}, nil, domain.ErrWatchUnsupported
	}
	cred, err := resolve(ctx, creds, provider)
	if err != nil {
		return domain.Cursor{}, nil, err
	}
	return w.Watch(ctx, cred)
}
