// Package normalizer maps provider payloads into domain.NormalizedMessage.
// Every mapping is total: malformed fields fall back to neutral defaults and no
// function here performs I/O.
package normalizer

import (
	"strings"
	"time"

	"mailsync-backend/internal/mail/domain"

	"github.com/emersion/go-message/mail"
)

// Raw is a provider payload that can be normalized.
type Raw interface {
	ID() string
	Normalize(now time.Time) domain.NormalizedMessage
}

// resolveReceivedAt returns the first usable candidate, or now minus one year flagged as estimated.
func resolveReceivedAt(now time.Time, candidates ...time.Time) (time.Time, bool) {
	for _, c := range candidates {
		if !c.IsZero() && c.Unix() > 0 {
			return c.UTC(), false
		}
	}
	return now.AddDate(-1, 0, 0).UTC(), true
}

// headerOf builds a mail.Header from name/value pairs.
func headerOf(pairs [][2]string) mail.Header {
	var h mail.Header
	for _, p := range pairs {
		h.Add(p[0], p[1])
	}
	return h
}

func headerDate(h mail.Header) time.Time {
	if h.Get("Date") == "" {
		return time.Time{}
	}
	t, err := h.Date()
	if err != nil {
		return time.Time{}
	}
	return t
}

func headerSubject(h mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		return strings.TrimSpace(h.Get("Subject"))
	}
	return strings.TrimSpace(s)
}

// sender returns the display name and address of the first From address.
func sender(h mail.Header) (string, string) {
	raw := h.Get("From")
	if raw == "" {
		return "", ""
	}
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		return addrs[0].Name, strings.ToLower(addrs[0].Address)
	}
	return splitNameAddress(raw)
}

// splitNameAddress handles "Name <email@example.com>" without a strict parser
func splitNameAddress(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "<"); idx >= 0 {
		name := strings.Trim(strings.TrimSpace(raw[:idx]), `"`)
		addr := raw[idx+1:]
		if end := strings.Index(addr, ">"); end >= 0 {
			addr = addr[:end]
		}
		return name, strings.ToLower(strings.TrimSpace(addr))
	}
	if strings.Contains(raw, "@") {
		return "", strings.ToLower(raw)
	}
	return raw, ""
}

// addressList splits a delimited address header into bare addresses.
func addressList(h mail.Header, key string) []string {
	raw := h.Get(key)
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	if addrs, err := h.AddressList(key); err == nil {
		out := make([]string, 0, len(addrs))
		for _, a := range addrs {
			if a.Address != "" {
				out = append(out, strings.ToLower(a.Address))
			}
		}
		return out
	}
	return splitAddresses(raw)
}

func splitAddresses(raw string) []string {
	out := []string{}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if _, addr := splitNameAddress(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func messageID(h mail.Header) string {
	if id, err := h.MessageID(); err == nil && id != "" {
		return id
	}
	return strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
}

// references returns the ancestor chain, falling back to In-Reply-To.
func references(h mail.Header) []string {
	for _, key := range []string{"References", "In-Reply-To"} {
		if h.Get(key) == "" {
			continue
		}
		ids, err := h.MsgIDList(key)
		if err == nil && len(ids) > 0 {
			return ids
		}
		if fields := strings.Fields(strings.NewReplacer("<", " ", ">", " ").Replace(h.Get(key))); len(fields) > 0 {
			return fields
		}
	}
	return []string{}
}
