package domain

import "errors"

var (
	// ErrCursorExpired means the upstream no longer knows the stored cursor.
	// Recovery needs a new subscription, not a retry.
	ErrCursorExpired = errors.New("cursor expired or unknown to upstream")
	// ErrUnauthorized means the upstream rejected the credentials.
	ErrUnauthorized = errors.New("provider authentication failed")
	// ErrCredentialsRequired means no usable credentials exist for the provider.
	ErrCredentialsRequired = errors.New("credentials required")
	// ErrResubscribeRequired is returned for cycles of a provider waiting for re-subscription.
	ErrResubscribeRequired = errors.New("provider requires re-subscription")
	// ErrStaleCursor is returned when a cursor write would move a provider backward.
	ErrStaleCursor = errors.New("cursor update refused: a newer cursor is already stored")
	// ErrProviderNotFound is returned for unknown provider names.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrInvalidMessage marks a single record that cannot be stored; callers skip it.
	ErrInvalidMessage = errors.New("invalid message record")
	// ErrMessageGone means a listed record no longer exists upstream.
	ErrMessageGone = errors.New("message no longer available upstream")
	// ErrWatchUnsupported is returned by sources without a push subscription.
	ErrWatchUnsupported = errors.New("provider does not support watch")
)

// ErrorClass drives health transitions.
type ErrorClass string

const (
	ErrorTransient   ErrorClass = "transient"
	ErrorStaleCursor ErrorClass = "stale_cursor"
	ErrorAuth        ErrorClass = "auth"
)

// SkippableRecord reports whether a per-record failure is permanent, so the
// record can be dropped without holding the cursor back.
func SkippableRecord(err error) bool {
	return errors.Is(err, ErrMessageGone) || errors.Is(err, ErrInvalidMessage)
}

// ClassifyError maps an adapter error to the class the state tracker acts on.
func ClassifyError(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrCursorExpired):
		return ErrorStaleCursor
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrCredentialsRequired):
		return ErrorAuth
	default:
		return ErrorTransient
	}
}
