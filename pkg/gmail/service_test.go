package gmail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailsync-backend/internal/mail/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, oauth2.TokenSource) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	return NewService(5*time.Second, WithEndpoint(srv.URL+"/"), WithRateLimit(1000, 100)), ts
}

func TestListHistory(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/history", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("startHistoryId"))
		assert.Equal(t, "messageAdded", r.URL.Query().Get("historyTypes"))
		assert.Equal(t, "next", r.URL.Query().Get("pageToken"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"history":[{"id":"101","messagesAdded":[{"message":{"id":"m1","threadId":"t1"}}]}],"historyId":"150"}`))
	})

	resp, err := svc.ListHistory(context.Background(), ts, 100, "next", "")
	require.NoError(t, err)
	require.Len(t, resp.History, 1)
	assert.Equal(t, "m1", resp.History[0].MessagesAdded[0].Message.Id)
	assert.EqualValues(t, 150, resp.HistoryId)
}

func TestListHistoryNotFoundIsCursorExpired(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})

	_, err := svc.ListHistory(context.Background(), ts, 1, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCursorExpired))
}

func TestUnauthorized(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	})

	_, err := svc.GetMessage(context.Background(), ts, "m1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestGetMessageNotFoundIsGone(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	})

	_, err := svc.GetMessage(context.Background(), ts, "gone")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrCursorExpired))
	assert.True(t, errors.Is(err, domain.ErrMessageGone))
	assert.True(t, domain.SkippableRecord(err))
}

func TestGetMessageRateLimitedIsNotSkippable(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Rate Limit Exceeded"}}`))
	})

	_, err := svc.GetMessage(context.Background(), ts, "m1")
	require.Error(t, err)
	assert.False(t, domain.SkippableRecord(err))
	assert.Equal(t, domain.ErrorTransient, domain.ClassifyError(err))
}

func TestProfile(t *testing.T) {
	svc, ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/profile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emailAddress":"me@example.com","historyId":"777"}`))
	})

	profile, err := svc.Profile(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.EmailAddress)
	assert.EqualValues(t, 777, profile.HistoryId)
}
