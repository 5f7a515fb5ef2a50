package domain

import "golang.org/x/oauth2"

// CredentialStatus is the outcome of asking the credential collaborator for a provider's credentials.
type CredentialStatus int

const (
	CredentialsOK CredentialStatus = iota
	CredentialsRequired
	CredentialsError
)

func (s CredentialStatus) String() string {
	switch s {
	case CredentialsOK:
		return "ok"
	case CredentialsRequired:
		return "credentials_required"
	default:
		return "error"
	}
}

// Credential is what a source needs to talk to its upstream. OAuth providers use
// TokenSource, IMAP uses Username/Password.
type Credential struct {
	TokenSource oauth2.TokenSource
	Username    string
	Password    string
}

// CredentialResult is returned instead of raising "not authenticated" errors.
type CredentialResult struct {
	Status     CredentialStatus
	Credential Credential
	Reason     string
	Err        error
}
