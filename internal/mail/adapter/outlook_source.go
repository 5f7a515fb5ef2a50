package adapter

import (
	"context"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/normalizer"
	"mailsync-backend/pkg/outlook"
)

// OutlookSource reads the Inbox through Graph. The delta link is the cursor.
type OutlookSource struct {
	provider string
	client   *outlook.Client
}

func NewOutlookSource(provider string, client *outlook.Client) *OutlookSource {
	return &OutlookSource{provider: provider, client: client}
}

// FetchChanges follows pageToken (a next link) or, on the first page, the stored
// delta link. Delta pages carry full messages so nothing is fetched twice.
func (s *OutlookSource) FetchChanges(ctx context.Context, cred domain.Credential, cursor domain.Cursor, pageToken string) (*ChangePage, error) {
	if cred.TokenSource == nil {
		return nil, domain.ErrCredentialsRequired
	}
	link := pageToken
	if link == "" {
		link = cursor.Token
	}

	resp, err := s.client.DeltaPage(ctx, cred.TokenSource, link)
	if err != nil {
		return nil, err
	}

	page := &ChangePage{NextPageToken: resp.NextLink}
	for _, m := range resp.Value {
		if m.Removed != nil || m.ID == "" {
			continue
		}
		page.Added = append(page.Added, Change{ID: m.ID, Raw: normalizer.GraphMessage{Provider: s.provider, Msg: m}})
	}
	if resp.NextLink == "" {
		page.Cursor = domain.Cursor{Token: resp.DeltaLink}
	}
	return page, nil
}

func (s *OutlookSource) FetchMessage(ctx context.Context, cred domain.Credential, id string) (normalizer.Raw, error) {
	msg, err := s.client.GetMessage(ctx, cred.TokenSource, id)
	if err != nil {
		return nil, err
	}
	return normalizer.GraphMessage{Provider: s.provider, Msg: *msg}, nil
}

// FetchRecent serves the full_refetch strategy. There is no cursor to carry.
func (s *OutlookSource) FetchRecent(ctx context.Context, cred domain.Credential, count int, cursor domain.Cursor) ([]normalizer.Raw, domain.Cursor, error) {
	if cred.TokenSource == nil {
		return nil, cursor, domain.ErrCredentialsRequired
	}
	msgs, err := s.client.Recent(ctx, cred.TokenSource, count)
	if err != nil {
		return nil, cursor, err
	}
	raws := make([]normalizer.Raw, 0, len(msgs))
	for _, m := range msgs {
		raws = append(raws, normalizer.GraphMessage{Provider: s.provider, Msg: m})
	}
	return raws, cursor, nil
}
