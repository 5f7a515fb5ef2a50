package domain

import (
	"strings"
	"time"
)

// Lifecycle tags the core writes on stored messages.
const (
	TagNotified        = "notified"
	TagNotifyExhausted = "notify_exhausted"
	TagImportant       = "important"
	TagRead            = "read"
)

// NormalizedMessage is the provider-agnostic shape every raw change payload is mapped into.
// Provider + ProviderMessageID is the natural key once persisted.
type NormalizedMessage struct {
	Provider          string
	ProviderMessageID string
	ProviderThreadID  string
	FromName          string
	FromEmail         string
	To                []string
	Cc                []string
	Bcc               []string
	Subject           string
	Preview           string
	BodyPlain         string
	BodyHTML          string
	ReceivedAt        time.Time
	// ReceivedAtEstimated is set when no candidate timestamp could be parsed and
	// ReceivedAt holds the "now minus one year" placeholder. Date filters must honour it.
	ReceivedAtEstimated bool
	InternetMessageID   string
	ReferencesIDs       []string
}

// StoredMessage is a persisted inbound message.
type StoredMessage struct {
	ID                  string      `json:"id" gorm:"primaryKey"`
	ThreadID            string      `json:"thread_id" gorm:"index;not null"`
	Provider            string      `json:"provider" gorm:"uniqueIndex:idx_message_provider_key;not null"`
	ProviderMessageID   string      `json:"provider_message_id" gorm:"uniqueIndex:idx_message_provider_key;not null"`
	FromDisplay         string      `json:"from_display"`
	FromEmail           string      `json:"from_email"`
	ToEmails            StringArray `json:"to_emails" gorm:"type:text"`
	CcEmails            StringArray `json:"cc_emails" gorm:"type:text"`
	BccEmails           StringArray `json:"bcc_emails" gorm:"type:text"`
	Subject             string      `json:"subject"`
	Snippet             string      `json:"snippet"`
	BodyPlain           string      `json:"body_plain,omitempty" gorm:"type:text"`
	BodyHTML            string      `json:"body_html,omitempty" gorm:"type:text"`
	ReceivedAt          time.Time   `json:"received_at" gorm:"index"`
	ReceivedAtEstimated bool        `json:"received_at_estimated" gorm:"not null;default:false"`
	InternetMessageID   string      `json:"internet_message_id,omitempty" gorm:"index"`
	ReferencesIDs       StringArray `json:"references_ids" gorm:"type:text"`
	Tags                StringArray `json:"tags" gorm:"type:text"`
	NotifyAttempts      int         `json:"notify_attempts" gorm:"not null;default:0"`
	LastAccessedAt      *time.Time  `json:"last_accessed_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for GORM
func (StoredMessage) TableName() string {
	return "email_messages"
}

// IsNotified reports whether the message already carries the notified marker.
func (m *StoredMessage) IsNotified() bool {
	return m.Tags.Contains(TagNotified)
}

// Sender returns the best display value for the sender.
func (m *StoredMessage) Sender() string {
	if m.FromDisplay != "" {
		return m.FromDisplay
	}
	return m.FromEmail
}

// NewStoredMessage copies a normalized message into a row referencing threadID.
// Text is made storable: NUL bytes are dropped and invalid UTF-8 is replaced.
func NewStoredMessage(id, threadID string, nm NormalizedMessage) *StoredMessage {
	return &StoredMessage{
		ID:                  id,
		ThreadID:            threadID,
		Provider:            nm.Provider,
		ProviderMessageID:   nm.ProviderMessageID,
		FromDisplay:         storable(nm.FromName),
		FromEmail:           storable(nm.FromEmail),
		ToEmails:            storableList(nm.To),
		CcEmails:            storableList(nm.Cc),
		BccEmails:           storableList(nm.Bcc),
		Subject:             storable(nm.Subject),
		Snippet:             storable(nm.Preview),
		BodyPlain:           storable(nm.BodyPlain),
		BodyHTML:            storable(nm.BodyHTML),
		ReceivedAt:          nm.ReceivedAt,
		ReceivedAtEstimated: nm.ReceivedAtEstimated,
		InternetMessageID:   storable(nm.InternetMessageID),
		ReferencesIDs:       storableList(nm.ReferencesIDs),
		Tags:                StringArray{},
	}
}

// storable makes s acceptable to a postgres text column
func storable(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func storableList(in []string) StringArray {
	if in == nil {
		return nil
	}
	out := make(StringArray, len(in))
	for i, s := range in {
		out[i] = storable(s)
	}
	return out
}
