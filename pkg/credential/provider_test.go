package credential

import (
	"context"
	"errors"
	"testing"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenFunc func() (*oauth2.Token, error)

func (f tokenFunc) Token() (*oauth2.Token, error) { return f() }

func newProvider(cfg *config.Config, ts oauth2.TokenSource) *EnvProvider {
	e := NewEnvProvider(cfg, []config.ProviderConfig{
		{Name: "gmail", Kind: config.KindGmail},
		{Name: "outlook", Kind: config.KindOutlook},
		{Name: "imap", Kind: config.KindIMAP},
	})
	e.newSource = func(context.Context, string) oauth2.TokenSource { return ts }
	return e
}

func TestResolveMissingCredentials(t *testing.T) {
	e := newProvider(&config.Config{}, nil)

	for _, name := range []string{"gmail", "outlook", "imap"} {
		res := e.Resolve(context.Background(), name)
		assert.Equal(t, domain.CredentialsRequired, res.Status, name)
		assert.NotEmpty(t, res.Reason)
	}

	res := e.Resolve(context.Background(), "unknown")
	assert.Equal(t, domain.CredentialsError, res.Status)
	assert.True(t, errors.Is(res.Err, domain.ErrProviderNotFound))
}

func TestResolveOK(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})
	e := newProvider(&config.Config{GmailRefreshToken: "rt", IMAPUsername: "u", IMAPPassword: "p"}, ts)

	res := e.Resolve(context.Background(), "gmail")
	require.Equal(t, domain.CredentialsOK, res.Status)
	require.NotNil(t, res.Credential.TokenSource)

	res = e.Resolve(context.Background(), "imap")
	require.Equal(t, domain.CredentialsOK, res.Status)
	assert.Equal(t, "u", res.Credential.Username)
}

func TestResolveRevokedToken(t *testing.T) {
	revoked := tokenFunc(func() (*oauth2.Token, error) {
		return nil, &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "Token has been expired or revoked."}
	})
	e := newProvider(&config.Config{GmailRefreshToken: "rt"}, revoked)

	res := e.Resolve(context.Background(), "gmail")
	assert.Equal(t, domain.CredentialsRequired, res.Status)
	assert.Contains(t, res.Reason, "revoked")

	flaky := tokenFunc(func() (*oauth2.Token, error) { return nil, errors.New("dial tcp: timeout") })
	e = newProvider(&config.Config{OutlookRefreshToken: "rt"}, flaky)
	res = e.Resolve(context.Background(), "outlook")
	assert.Equal(t, domain.CredentialsError, res.Status)
	assert.Error(t, res.Err)
}
