// Package credential resolves provider credentials from the environment. It is the
// only place that knows about refresh tokens; callers receive an explicit result
// instead of an authentication error.
package credential

import (
	"context"
	"errors"
	"sync"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

var (
	gmailScopes   = []string{"https://www.googleapis.com/auth/gmail.readonly"}
	outlookScopes = []string{"offline_access", "https://graph.microsoft.com/Mail.Read"}
)

// EnvProvider resolves credentials for the configured providers.
type EnvProvider struct {
	cfg       *config.Config
	kinds     map[string]string
	mu        sync.Mutex
	sources   map[string]oauth2.TokenSource
	newSource func(ctx context.Context, kind string) oauth2.TokenSource
}

// NewEnvProvider maps each provider name to its kind's credentials.
func NewEnvProvider(cfg *config.Config, providers []config.ProviderConfig) *EnvProvider {
	kinds := make(map[string]string, len(providers))
	for _, p := range providers {
		kinds[p.Name] = p.Kind
	}
	e := &EnvProvider{
		cfg:     cfg,
		kinds:   kinds,
		sources: make(map[string]oauth2.TokenSource),
	}
	e.newSource = e.oauthSource
	return e
}

// Resolve returns the provider's credential, or CredentialsRequired when none is
// configured or the refresh token was revoked.
func (e *EnvProvider) Resolve(ctx context.Context, provider string) domain.CredentialResult {
	kind, ok := e.kinds[provider]
	if !ok {
		return domain.CredentialResult{Status: domain.CredentialsError, Err: domain.ErrProviderNotFound}
	}

	switch kind {
	case config.KindIMAP:
		if e.cfg.IMAPUsername == "" || e.cfg.IMAPPassword == "" {
			return required("IMAP_USERNAME/IMAP_PASSWORD not set")
		}
		return domain.CredentialResult{
			Status:     domain.CredentialsOK,
			Credential: domain.Credential{Username: e.cfg.IMAPUsername, Password: e.cfg.IMAPPassword},
		}
	case config.KindGmail:
		if e.cfg.GmailRefreshToken == "" {
			return required("GMAIL_REFRESH_TOKEN not set")
		}
	case config.KindOutlook:
		if e.cfg.OutlookRefreshToken == "" {
			return required("OUTLOOK_REFRESH_TOKEN not set")
		}
	}

	ts := e.tokenSource(ctx, provider, kind)
	if _, err := ts.Token(); err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			e.forget(provider)
			return required("refresh token rejected: " + retrieveErr.ErrorDescription)
		}
		return domain.CredentialResult{Status: domain.CredentialsError, Err: err}
	}
	return domain.CredentialResult{
		Status:     domain.CredentialsOK,
		Credential: domain.Credential{TokenSource: ts},
	}
}

func (e *EnvProvider) tokenSource(ctx context.Context, provider, kind string) oauth2.TokenSource {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ts, ok := e.sources[provider]; ok {
		return ts
	}
	ts := e.newSource(ctx, kind)
	e.sources[provider] = ts
	return ts
}

func (e *EnvProvider) forget(provider string) {
	e.mu.Lock()
	delete(e.sources, provider)
	e.mu.Unlock()
}

// oauthSource builds a refreshing token source. The background context keeps the
// cached source usable after the first caller's context ends.
func (e *EnvProvider) oauthSource(_ context.Context, kind string) oauth2.TokenSource {
	var (
		conf    *oauth2.Config
		refresh string
	)
	switch kind {
	case config.KindOutlook:
		conf = &oauth2.Config{
			ClientID:     e.cfg.OutlookClientID,
			ClientSecret: e.cfg.OutlookClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(e.cfg.OutlookTenant),
			Scopes:       outlookScopes,
		}
		refresh = e.cfg.OutlookRefreshToken
	default:
		conf = &oauth2.Config{
			ClientID:     e.cfg.GoogleClientID,
			ClientSecret: e.cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       gmailScopes,
		}
		refresh = e.cfg.GmailRefreshToken
	}
	return conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refresh})
}

func required(reason string) domain.CredentialResult {
	return domain.CredentialResult{Status: domain.CredentialsRequired, Reason: reason}
}
