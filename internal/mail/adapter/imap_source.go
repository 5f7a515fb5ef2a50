package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/normalizer"
	"mailsync-backend/pkg/imap"
)

// IMAPSource refetches the newest messages of one mailbox.
type IMAPSource struct {
	provider string
	client   *imap.Client
	mailbox  string
}

func NewIMAPSource(provider string, client *imap.Client, mailbox string) *IMAPSource {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPSource{provider: provider, client: client, mailbox: mailbox}
}

// FetchRecent returns up to count newest messages. The cursor token
// "uidvalidity:maxuid" only trims the batch; correctness rests on ingest dedup.
func (s *IMAPSource) FetchRecent(ctx context.Context, cred domain.Credential, count int, cursor domain.Cursor) ([]normalizer.Raw, domain.Cursor, error) {
	if cred.Username == "" {
		return nil, cursor, domain.ErrCredentialsRequired
	}
	validity, lastUID := parseIMAPCursor(cursor.Token)

	batch, err := s.client.FetchRecent(ctx, cred.Username, cred.Password, s.mailbox, count, lastUID, validity)
	if err != nil {
		return nil, cursor, err
	}

	if batch.UIDValidity != validity {
		lastUID = 0
	}
	raws := make([]normalizer.Raw, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		raws = append(raws, normalizer.MIMEMessage{
			Provider:          s.provider,
			ProviderMessageID: imapMessageID(batch.UIDValidity, m.UID),
			Raw:               m.Raw,
			InternalDate:      m.InternalDate,
		})
		if m.UID > lastUID {
			lastUID = m.UID
		}
	}
	return raws, imapCursor(batch.UIDValidity, lastUID), nil
}

func imapMessageID(validity, uid uint32) string {
	return fmt.Sprintf("%d-%d", validity, uid)
}

// imapCursor is opaque: a UIDVALIDITY change may lower the max UID
func imapCursor(validity, uid uint32) domain.Cursor {
	return domain.Cursor{Token: fmt.Sprintf("%d:%d", validity, uid)}
}

func parseIMAPCursor(token string) (validity, uid uint32) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	v, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0
	}
	u, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0
	}
	return uint32(v), uint32(u)
}
