package adapter

import (
	"context"
	"strconv"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/normalizer"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/logger"
)

// GmailSource replays Gmail history from a history id.
type GmailSource struct {
	provider string
	service  *gmail.Service
	topic    string
	labels   []string
}

func NewGmailSource(provider string, service *gmail.Service, topic string, labels []string) *GmailSource {
	return &GmailSource{provider: provider, service: service, topic: topic, labels: labels}
}

func gmailCursor(historyID uint64) domain.Cursor {
	return domain.Cursor{Token: strconv.FormatUint(historyID, 10), Position: int64(historyID)}
}

func (s *GmailSource) label() string {
	if len(s.labels) == 0 {
		return ""
	}
	return s.labels[0]
}

// FetchChanges lists messageAdded history after cursor. With no cursor yet, the
// mailbox's current history id becomes the baseline and nothing is replayed.
func (s *GmailSource) FetchChanges(ctx context.Context, cred domain.Credential, cursor domain.Cursor, pageToken string) (*ChangePage, error) {
	if cred.TokenSource == nil {
		return nil, domain.ErrCredentialsRequired
	}

	start := uint64(cursor.Position)
	if start == 0 && cursor.Token != "" {
		if v, err := strconv.ParseUint(cursor.Token, 10, 64); err == nil {
			start = v
		}
	}
	if start == 0 {
		profile, err := s.service.Profile(ctx, cred.TokenSource)
		if err != nil {
			return nil, err
		}
		return &ChangePage{Cursor: gmailCursor(profile.HistoryId)}, nil
	}

	resp, err := s.service.ListHistory(ctx, cred.TokenSource, start, pageToken, s.label())
	if err != nil {
		return nil, err
	}

	page := &ChangePage{NextPageToken: resp.NextPageToken}
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if added.Message == nil || added.Message.Id == "" {
				continue
			}
			page.Added = append(page.Added, Change{ID: added.Message.Id})
		}
	}
	if page.NextPageToken == "" {
		next := resp.HistoryId
		if next < start {
			next = start
		}
		page.Cursor = gmailCursor(next)
	}
	return page, nil
}

func (s *GmailSource) FetchMessage(ctx context.Context, cred domain.Credential, id string) (normalizer.Raw, error) {
	msg, err := s.service.GetMessage(ctx, cred.TokenSource, id)
	if err != nil {
		return nil, err
	}
	return normalizer.GmailMessage{Provider: s.provider, Msg: msg}, nil
}

// FetchRecent serves the full_refetch strategy from messages.list. The cursor is unused.
func (s *GmailSource) FetchRecent(ctx context.Context, cred domain.Credential, count int, cursor domain.Cursor) ([]normalizer.Raw, domain.Cursor, error) {
	if cred.TokenSource == nil {
		return nil, cursor, domain.ErrCredentialsRequired
	}
	ids, err := s.service.ListRecent(ctx, cred.TokenSource, count, s.label())
	if err != nil {
		return nil, cursor, err
	}

	raws := make([]normalizer.Raw, 0, len(ids))
	for _, id := range ids {
		raw, err := s.FetchMessage(ctx, cred, id)
		if err != nil {
			if !domain.SkippableRecord(err) {
				return nil, cursor, err
			}
			logger.WithComponent("GmailSource").WithError(err).Warnf("Skipping message %s", id)
			continue
		}
		raws = append(raws, raw)
	}
	return raws, cursor, nil
}

// Watch renews the Pub/Sub watch and returns the history id it starts from.
func (s *GmailSource) Watch(ctx context.Context, cred domain.Credential) (domain.Cursor, *time.Time, error) {
	if cred.TokenSource == nil {
		return domain.Cursor{}, nil, domain.ErrCredentialsRequired
	}
	if s.topic == "" {
		return domain.Cursor{}, nil, domain.ErrWatchUnsupported
	}
	resp, err := s.service.Watch(ctx, cred.TokenSource, s.topic, s.labels)
	if err != nil {
		return domain.Cursor{}, nil, err
	}
	var expires *time.Time
	if resp.Expiration > 0 {
		t := time.UnixMilli(resp.Expiration).UTC()
		expires = &t
	}
	return gmailCursor(resp.HistoryId), expires, nil
}
