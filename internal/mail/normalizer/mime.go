package normalizer

import (
	"bytes"
	"io"
	"strings"
	"time"

	"mailsync-backend/internal/mail/domain"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxPartSize caps how much of a single body part is read.
const maxPartSize = 2 << 20

// MIMEMessage wraps a raw RFC 5322 message, as fetched over IMAP.
type MIMEMessage struct {
	Provider          string
	ProviderMessageID string
	ProviderThreadID  string
	Raw               []byte
	InternalDate      time.Time
}

func (m MIMEMessage) ID() string { return m.ProviderMessageID }

func (m MIMEMessage) Normalize(now time.Time) domain.NormalizedMessage {
	return FromMIME(m.Provider, m.ProviderMessageID, m.ProviderThreadID, m.Raw, m.InternalDate, now)
}

// FromMIME maps a raw message. A message that go-message cannot open is kept with its
// raw text as the plain body.
func FromMIME(provider, id, threadID string, raw []byte, internalDate time.Time, now time.Time) domain.NormalizedMessage {
	nm := domain.NormalizedMessage{
		Provider:          provider,
		ProviderMessageID: id,
		ProviderThreadID:  threadID,
		To:                []string{},
		Cc:                []string{},
		Bcc:               []string{},
		ReferencesIDs:     []string{},
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		nm.BodyPlain = string(raw)
		nm.Preview = Preview("", nm.BodyPlain, "")
		nm.ReceivedAt, nm.ReceivedAtEstimated = resolveReceivedAt(now, internalDate)
		return nm
	}
	defer mr.Close()

	h := mr.Header
	nm.FromName, nm.FromEmail = sender(h)
	nm.To = addressList(h, "To")
	nm.Cc = addressList(h, "Cc")
	nm.Bcc = addressList(h, "Bcc")
	nm.Subject = headerSubject(h)
	nm.InternetMessageID = messageID(h)
	nm.ReferencesIDs = references(h)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && nm.BodyPlain == "":
			nm.BodyPlain = readPart(part.Body)
		case strings.HasPrefix(contentType, "text/html") && nm.BodyHTML == "":
			nm.BodyHTML = readPart(part.Body)
		}
	}

	nm.Preview = Preview("", nm.BodyPlain, nm.BodyHTML)
	nm.ReceivedAt, nm.ReceivedAtEstimated = resolveReceivedAt(now, internalDate, headerDate(h))
	return nm
}

func readPart(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxPartSize))
	if err != nil {
		return ""
	}
	return string(body)
}
