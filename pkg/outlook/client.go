package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mailsync-backend/internal/mail/domain"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	selectFields = "id,conversationId,subject,bodyPreview,body,from,sender,toRecipients,ccRecipients,bccRecipients,receivedDateTime,sentDateTime,internetMessageId"
)

// Client is a minimal Microsoft Graph mail client.
type Client struct {
	baseURL      string
	fetchTimeout time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at another Graph root (used against test servers).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

func NewClient(fetchTimeout time.Duration, opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL, fetchTimeout: fetchTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeltaPage fetches one delta page. An empty link starts a new delta round on the Inbox;
// otherwise link is a previously returned nextLink or deltaLink.
func (c *Client) DeltaPage(ctx context.Context, ts oauth2.TokenSource, link string) (*DeltaPage, error) {
	if link == "" {
		q := url.Values{}
		q.Set("$select", selectFields)
		link = c.baseURL + "/me/mailFolders/Inbox/messages/delta?" + q.Encode()
	}

	var page DeltaPage
	if err := c.get(ctx, ts, link, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Recent returns the newest count Inbox messages.
func (c *Client) Recent(ctx context.Context, ts oauth2.TokenSource, count int) ([]Message, error) {
	q := url.Values{}
	q.Set("$select", selectFields)
	q.Set("$orderby", "receivedDateTime desc")
	q.Set("$top", strconv.Itoa(count))

	var resp listResponse
	if err := c.get(ctx, ts, c.baseURL+"/me/mailFolders/Inbox/messages?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetMessage fetches a single message.
func (c *Client) GetMessage(ctx context.Context, ts oauth2.TokenSource, id string) (*Message, error) {
	q := url.Values{}
	q.Set("$select", selectFields)

	var msg Message
	if err := c.get(ctx, ts, c.baseURL+"/me/messages/"+url.PathEscape(id)+"?"+q.Encode(), &msg); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMessageGone, id, err)
		}
		return nil, err
	}
	return &msg, nil
}

func (c *Client) get(ctx context.Context, ts oauth2.TokenSource, link string, out interface{}) error {
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = c.fetchTimeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := client.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return mapStatus(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph: decode response: %w", err)
	}
	return nil
}

// errNotFound is only meaningful per resource; GetMessage turns it into ErrMessageGone.
var errNotFound = errors.New("graph: not found")

// mapStatus translates Graph HTTP failures into the domain taxonomy. 410 Gone
// means the delta token expired and a full resync is required.
func mapStatus(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: graph status %d: %s", domain.ErrUnauthorized, code, msg)
	case http.StatusGone:
		return fmt.Errorf("%w: graph status %d: %s", domain.ErrCursorExpired, code, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, msg)
	default:
		return fmt.Errorf("graph status %d: %s", code, msg)
	}
}

func mapTransportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return fmt.Errorf("graph request: %w", err)
}
