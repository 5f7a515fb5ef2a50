package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGmailSource(t *testing.T, handler http.HandlerFunc) (*GmailSource, domain.Credential) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := gmail.NewService(5*time.Second, gmail.WithEndpoint(srv.URL+"/"), gmail.WithRateLimit(1000, 100))
	cred := domain.Credential{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})}
	return NewGmailSource("gmail", svc, "projects/p/topics/mail", []string{"INBOX"}), cred
}

func TestGmailSourceBaselineFromProfile(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/profile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emailAddress":"me@example.com","historyId":"900"}`))
	})

	page, err := src.FetchChanges(context.Background(), cred, domain.Cursor{}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Added)
	assert.Empty(t, page.NextPageToken)
	assert.Equal(t, domain.Cursor{Token: "900", Position: 900}, page.Cursor)
}

func TestGmailSourceHistoryPage(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/history", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("startHistoryId"))
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"history":[{"id":"101","messagesAdded":[{"message":{"id":"m1"}},{"message":{"id":"m2"}}]}],"historyId":"150"}`))
	})

	page, err := src.FetchChanges(context.Background(), cred, domain.Cursor{Token: "100", Position: 100}, "")
	require.NoError(t, err)
	require.Len(t, page.Added, 2)
	assert.Equal(t, "m1", page.Added[0].ID)
	assert.Nil(t, page.Added[0].Raw)
	assert.EqualValues(t, 150, page.Cursor.Position)
}

func TestGmailSourceMidPageHasNoCursor(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"history":[],"nextPageToken":"more","historyId":"150"}`))
	})

	page, err := src.FetchChanges(context.Background(), cred, domain.Cursor{Token: "100", Position: 100}, "")
	require.NoError(t, err)
	assert.Equal(t, "more", page.NextPageToken)
	assert.True(t, page.Cursor.IsZero())
}

func TestGmailSourceWatch(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/stop":
			w.WriteHeader(http.StatusNoContent)
		case "/gmail/v1/users/me/watch":
			_, _ = w.Write([]byte(`{"historyId":"321","expiration":"1893456000000"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	cursor, expires, err := src.Watch(context.Background(), cred)
	require.NoError(t, err)
	assert.EqualValues(t, 321, cursor.Position)
	require.NotNil(t, expires)
	assert.Equal(t, int64(1893456000000), expires.UnixMilli())
}

func TestGmailSourceFetchRecent(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
			_, _ = w.Write([]byte(`{"messages":[{"id":"a"},{"id":"gone"}]}`))
		case "/gmail/v1/users/me/messages/a":
			_, _ = w.Write([]byte(`{"id":"a","threadId":"t","internalDate":"1700000000000","payload":{"headers":[{"name":"Subject","value":"Hi"}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	})

	raws, _, err := src.FetchRecent(context.Background(), cred, 2, domain.Cursor{})
	require.NoError(t, err)
	require.Len(t, raws, 1)
	nm := raws[0].Normalize(time.Now())
	assert.Equal(t, "a", nm.ProviderMessageID)
	assert.Equal(t, "Hi", nm.Subject)
}

func TestGmailSourceFetchRecentFailsOnServerError(t *testing.T) {
	src, cred := newGmailSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/gmail/v1/users/me/messages" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"a"}]}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":502,"message":"Bad Gateway"}}`))
	})

	_, _, err := src.FetchRecent(context.Background(), cred, 1, domain.Cursor{})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTransient, domain.ClassifyError(err))
}
