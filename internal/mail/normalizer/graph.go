package normalizer

import (
	"strings"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/outlook"
)

// GraphMessage wraps a Microsoft Graph message resource.
type GraphMessage struct {
	Provider string
	Msg      outlook.Message
}

func (g GraphMessage) ID() string { return g.Msg.ID }

func (g GraphMessage) Normalize(now time.Time) domain.NormalizedMessage {
	return FromGraph(g.Provider, g.Msg, now)
}

// FromGraph maps a Graph message. Graph already splits recipients, so only the
// optional internet headers go through the MIME header parser.
func FromGraph(provider string, msg outlook.Message, now time.Time) domain.NormalizedMessage {
	var pairs [][2]string
	for _, hd := range msg.InternetMessageHeaders {
		pairs = append(pairs, [2]string{hd.Name, hd.Value})
	}
	h := headerOf(pairs)

	nm := domain.NormalizedMessage{
		Provider:          provider,
		ProviderMessageID: msg.ID,
		ProviderThreadID:  msg.ConversationID,
		Subject:           strings.TrimSpace(msg.Subject),
		To:                recipients(msg.ToRecipients),
		Cc:                recipients(msg.CcRecipients),
		Bcc:               recipients(msg.BccRecipients),
		InternetMessageID: strings.Trim(strings.TrimSpace(msg.InternetMessageID), "<>"),
		ReferencesIDs:     references(h),
	}

	from := msg.From
	if from == nil {
		from = msg.Sender
	}
	if from != nil {
		nm.FromName = from.EmailAddress.Name
		nm.FromEmail = strings.ToLower(from.EmailAddress.Address)
	}

	if msg.Body != nil {
		if strings.EqualFold(msg.Body.ContentType, "html") {
			nm.BodyHTML = msg.Body.Content
		} else {
			nm.BodyPlain = msg.Body.Content
		}
	}
	nm.Preview = Preview(msg.BodyPreview, nm.BodyPlain, nm.BodyHTML)

	nm.ReceivedAt, nm.ReceivedAtEstimated = resolveReceivedAt(now,
		parseGraphTime(msg.ReceivedDateTime),
		parseGraphTime(msg.SentDateTime),
		headerDate(h),
	)
	return nm
}

func recipients(list []outlook.Recipient) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		if addr := strings.ToLower(strings.TrimSpace(r.EmailAddress.Address)); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func parseGraphTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
