package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const userID = "me"

type Service struct {
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	endpoint     string
}

type Option func(*Service)

// WithEndpoint points the client at another base URL (used against test servers).
func WithEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = endpoint }
}

// WithRateLimit caps messages.get calls per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func NewService(fetchTimeout time.Duration, opts ...Option) *Service {
	s := &Service{
		fetchTimeout: fetchTimeout,
		// Gmail allows 250 quota units per user per second; messages.get costs 5
		limiter: rate.NewLimiter(rate.Limit(40), 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetGmailService creates a Gmail API client authenticated by ts
func (s *Service) GetGmailService(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = s.fetchTimeout

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Profile returns the mailbox address and its current history id
func (s *Service) Profile(ctx context.Context, ts oauth2.TokenSource) (*gmail.Profile, error) {
	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}
	profile, err := srv.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("users.getProfile: %w", mapError(err, false))
	}
	return profile, nil
}

// ListHistory returns one page of messageAdded history records after startHistoryID
func (s *Service) ListHistory(ctx context.Context, ts oauth2.TokenSource, startHistoryID uint64, pageToken, labelID string) (*gmail.ListHistoryResponse, error) {
	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}

	call := srv.Users.History.List(userID).
		StartHistoryId(startHistoryID).
		HistoryTypes("messageAdded").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	if labelID != "" {
		call = call.LabelId(labelID)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("users.history.list: %w", mapError(err, true))
	}
	return resp, nil
}

// ListRecent returns the ids of the newest count messages, optionally within labelID
func (s *Service) ListRecent(ctx context.Context, ts oauth2.TokenSource, count int, labelID string) ([]string, error) {
	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List(userID).MaxResults(int64(count)).Context(ctx)
	if labelID != "" {
		call = call.LabelIds(labelID)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("users.messages.list: %w", mapError(err, false))
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches one message in full format
func (s *Service) GetMessage(ctx context.Context, ts oauth2.TokenSource, id string) (*gmail.Message, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}
	msg, err := srv.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("users.messages.get %s: %w", id, mapError(err, false))
	}
	return msg, nil
}

// Watch sets up push notifications for the mailbox on topicName
func (s *Service) Watch(ctx context.Context, ts oauth2.TokenSource, topicName string, labelIDs []string) (*gmail.WatchResponse, error) {
	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("Gmail")

	// Clear any existing watch first to avoid "Only one user push notification client allowed".
	// No watch is not an error worth surfacing.
	log.Debug("Stopping existing watch")
	_ = srv.Users.Stop(userID).Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  labelIDs,
	}

	log.Infof("Starting watch on topic: %s", topicName)
	resp, err := srv.Users.Watch(userID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to watch mailbox: %w", mapError(err, false))
	}
	log.Infof("Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return resp, nil
}

// Stop stops push notifications for the mailbox
func (s *Service) Stop(ctx context.Context, ts oauth2.TokenSource) error {
	srv, err := s.GetGmailService(ctx, ts)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop(userID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", mapError(err, false))
	}
	return nil
}

// mapError translates API failures into the domain taxonomy. A 404 on
// history.list means the start history id is too old; elsewhere the record is gone.
func mapError(err error, history bool) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		case apiErr.Code == http.StatusNotFound && history:
			return fmt.Errorf("%w: %v", domain.ErrCursorExpired, err)
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrMessageGone, err)
		}
	}
	return err
}
