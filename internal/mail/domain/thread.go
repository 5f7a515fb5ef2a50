package domain

import "time"

// StoredThread groups messages of one conversation.
// (Provider, ProviderThreadID) is unique; OriginThreadID keeps the provider-supplied id
// a split thread was derived from.
type StoredThread struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	Provider         string     `json:"provider" gorm:"uniqueIndex:idx_thread_provider_key;index:idx_thread_origin;not null"`
	ProviderThreadID *string    `json:"provider_thread_id" gorm:"uniqueIndex:idx_thread_provider_key"`
	OriginThreadID   string     `json:"origin_thread_id" gorm:"index:idx_thread_origin"`
	SubjectLast      string     `json:"subject_last"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StoredThread) TableName() string {
	return "email_threads"
}

// ProviderThreadKey returns the provider thread id or "" when it is null.
func (t *StoredThread) ProviderThreadKey() string {
	if t.ProviderThreadID == nil {
		return ""
	}
	return *t.ProviderThreadID
}
