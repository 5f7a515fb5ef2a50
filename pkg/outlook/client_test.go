package outlook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailsync-backend/internal/mail/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testToken = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "graph-token"})

func TestDeltaPaging(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "/me/mailFolders/Inbox/messages/delta", r.URL.Path)
			fmt.Fprintf(w, `{"value":[{"id":"a","subject":"Hi","conversationId":"c1"}],"@odata.nextLink":"%s/me/mailFolders/Inbox/messages/delta?page=2"}`, srv.URL)
		case "2":
			fmt.Fprintf(w, `{"value":[{"id":"b","@removed":{"reason":"deleted"}}],"@odata.deltaLink":"%s/me/mailFolders/Inbox/messages/delta?page=done"}`, srv.URL)
		}
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, WithBaseURL(srv.URL))

	first, err := c.DeltaPage(context.Background(), testToken, "")
	require.NoError(t, err)
	require.Len(t, first.Value, 1)
	assert.Equal(t, "a", first.Value[0].ID)
	assert.Equal(t, "c1", first.Value[0].ConversationID)
	assert.NotEmpty(t, first.NextLink)
	assert.Empty(t, first.DeltaLink)

	second, err := c.DeltaPage(context.Background(), testToken, first.NextLink)
	require.NoError(t, err)
	require.Len(t, second.Value, 1)
	require.NotNil(t, second.Value[0].Removed)
	assert.Equal(t, "deleted", second.Value[0].Removed.Reason)
	assert.Contains(t, second.DeltaLink, "page=done")
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusGone, domain.ErrCursorExpired},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := NewClient(time.Second, WithBaseURL(srv.URL)).DeltaPage(context.Background(), testToken, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := NewClient(time.Second, WithBaseURL(srv.URL)).Recent(context.Background(), testToken, 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrCursorExpired))
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/Inbox/messages", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("$top"))
		assert.Equal(t, "receivedDateTime desc", r.URL.Query().Get("$orderby"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"x"},{"id":"y"}]}`))
	}))
	defer srv.Close()

	msgs, err := NewClient(time.Second, WithBaseURL(srv.URL)).Recent(context.Background(), testToken, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "y", msgs[1].ID)
}

func TestGetMessageNotFoundIsGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"ErrorItemNotFound"}}`)
	}))
	defer srv.Close()
	client := NewClient(time.Second, WithBaseURL(srv.URL))

	_, err := client.GetMessage(context.Background(), testToken, "AAMk-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMessageGone))
	assert.True(t, domain.SkippableRecord(err))

	// a missing folder on the delta feed is not a skippable record
	_, err = client.DeltaPage(context.Background(), testToken, "")
	require.Error(t, err)
	assert.False(t, domain.SkippableRecord(err))
}
