package normalizer

import (
	"encoding/base64"
	"strings"
	"time"

	"mailsync-backend/internal/mail/domain"

	"google.golang.org/api/gmail/v1"
)

// GmailMessage wraps a users.messages.get response (format=full).
type GmailMessage struct {
	Provider string
	Msg      *gmail.Message
}

func (g GmailMessage) ID() string {
	if g.Msg == nil {
		return ""
	}
	return g.Msg.Id
}

func (g GmailMessage) Normalize(now time.Time) domain.NormalizedMessage {
	return FromGmail(g.Provider, g.Msg, now)
}

// FromGmail maps a Gmail API message.
func FromGmail(provider string, msg *gmail.Message, now time.Time) domain.NormalizedMessage {
	nm := domain.NormalizedMessage{
		Provider:      provider,
		To:            []string{},
		Cc:            []string{},
		Bcc:           []string{},
		ReferencesIDs: []string{},
	}
	if msg == nil {
		nm.ReceivedAt, nm.ReceivedAtEstimated = resolveReceivedAt(now)
		return nm
	}
	nm.ProviderMessageID = msg.Id
	nm.ProviderThreadID = msg.ThreadId

	var pairs [][2]string
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			if hd != nil {
				pairs = append(pairs, [2]string{hd.Name, hd.Value})
			}
		}
	}
	h := headerOf(pairs)

	nm.FromName, nm.FromEmail = sender(h)
	nm.To = addressList(h, "To")
	nm.Cc = addressList(h, "Cc")
	nm.Bcc = addressList(h, "Bcc")
	nm.Subject = headerSubject(h)
	nm.InternetMessageID = messageID(h)
	nm.ReferencesIDs = references(h)
	nm.BodyPlain, nm.BodyHTML = gmailBodies(msg.Payload)
	nm.Preview = Preview(msg.Snippet, nm.BodyPlain, nm.BodyHTML)

	var internal time.Time
	if msg.InternalDate > 0 {
		internal = time.UnixMilli(msg.InternalDate)
	}
	nm.ReceivedAt, nm.ReceivedAtEstimated = resolveReceivedAt(now, internal, headerDate(h))
	return nm
}

// gmailBodies walks the part tree depth-first and keeps the first plain and the first HTML part.
func gmailBodies(payload *gmail.MessagePart) (plain, htmlBody string) {
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		mimeType := strings.ToLower(p.MimeType)
		if p.Body != nil && p.Body.Data != "" && (p.Filename == "") {
			switch {
			case strings.HasPrefix(mimeType, "text/plain") && plain == "":
				plain = decodeBase64URL(p.Body.Data)
			case strings.HasPrefix(mimeType, "text/html") && htmlBody == "":
				htmlBody = decodeBase64URL(p.Body.Data)
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(payload)
	return plain, htmlBody
}

// decodeBase64URL accepts padded and unpadded URL-safe base64. Undecodable data yields "".
func decodeBase64URL(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}
