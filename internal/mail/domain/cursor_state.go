package domain

import "time"

// HealthState is the coarse per-provider health.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthDown     HealthState = "down"
)

// Cursor is an opaque ingestion position. Position > 0 marks an ordered cursor
// (for example a Gmail history id) that can be compared numerically.
type Cursor struct {
	Token    string
	Position int64
}

// IsZero reports whether no cursor has been recorded.
func (c Cursor) IsZero() bool {
	return c.Token == "" && c.Position == 0
}

// Ordered reports whether the cursor carries a comparable position.
func (c Cursor) Ordered() bool {
	return c.Position > 0
}

// ProviderCursorState is the single source of truth for a provider's sync progress.
type ProviderCursorState struct {
	Provider         string      `json:"provider" gorm:"primaryKey"`
	Cursor           string      `json:"cursor" gorm:"type:text"`
	CursorPosition   int64       `json:"cursor_position" gorm:"not null;default:0"`
	Version          int64       `json:"version" gorm:"not null;default:0"`
	PushCursor       string      `json:"push_cursor,omitempty" gorm:"type:text"`
	PushPosition     int64       `json:"push_position" gorm:"not null;default:0"`
	WatchExpiresAt   *time.Time  `json:"watch_expires_at,omitempty"`
	LastActivityAt   *time.Time  `json:"last_activity_at,omitempty"`
	LastPushAt       *time.Time  `json:"last_push_at,omitempty"`
	LastPollAt       *time.Time  `json:"last_poll_at,omitempty"`
	Health           HealthState `json:"health" gorm:"not null;default:healthy"`
	HealthReason     string      `json:"health_reason,omitempty"`
	NeedsResubscribe bool        `json:"needs_resubscribe" gorm:"not null;default:false"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ProviderCursorState) TableName() string {
	return "provider_cursor_states"
}

// CurrentCursor returns the stored cursor.
func (s *ProviderCursorState) CurrentCursor() Cursor {
	return Cursor{Token: s.Cursor, Position: s.CursorPosition}
}
