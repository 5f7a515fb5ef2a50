package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/fcm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePushHandler struct {
	err     error
	account string
	cursor  domain.Cursor
	calls   int
}

func (f *fakePushHandler) HandlePush(ctx context.Context, account string, pushed domain.Cursor) (*usecase.PushOutcome, error) {
	f.calls++
	f.account, f.cursor = account, pushed
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.PushOutcome{Provider: "gmail", Queued: true}, nil
}

func TestSubscriberHandle(t *testing.T) {
	h := &fakePushHandler{}
	s := &Subscriber{handler: h}

	assert.True(t, s.handle(context.Background(), []byte(`{"emailAddress":"me@example.com","historyId":77}`)))
	assert.Equal(t, "me@example.com", h.account)
	assert.Equal(t, domain.Cursor{Token: "77", Position: 77}, h.cursor)

	assert.True(t, s.handle(context.Background(), []byte(`garbage`)), "undecodable messages are acked")
	assert.Equal(t, 1, h.calls)

	h.err = domain.ErrProviderNotFound
	assert.True(t, s.handle(context.Background(), []byte(`{"emailAddress":"x@example.com","historyId":1}`)))

	h.err = errors.New("database is locked")
	assert.False(t, s.handle(context.Background(), []byte(`{"emailAddress":"me@example.com","historyId":2}`)), "storage failures are redelivered")
}

type fakeTopicSender struct {
	topic string
	sent  []fcm.NotificationData
	err   error
}

func (f *fakeTopicSender) SendToTopic(ctx context.Context, topic string, n fcm.NotificationData) error {
	f.topic = topic
	f.sent = append(f.sent, n)
	return f.err
}

func TestDigestSingleMessage(t *testing.T) {
	client := &fakeTopicSender{}
	s := NewFCMDigestSender(client, "mail-digest")

	err := s.SendDigest(context.Background(), []usecase.DigestItem{{MessageID: "m1", Provider: "gmail", Sender: "Alice", Subject: "Budget Review"}})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "mail-digest", client.topic)

	n := client.sent[0]
	assert.Equal(t, "New mail from Alice", n.Title)
	assert.Equal(t, "Budget Review", n.Body)
	assert.Equal(t, "1", n.Data["count"])
	assert.Equal(t, "/messages/m1", n.ClickAction)
}

func TestDigestManyMessages(t *testing.T) {
	items := make([]usecase.DigestItem, 5)
	for i := range items {
		items[i] = usecase.DigestItem{MessageID: string(rune('a' + i)), Sender: "Bob", Subject: "Hi"}
	}

	n := buildDigest(items)
	assert.Equal(t, "5 new messages", n.Title)
	assert.Equal(t, "a,b,c,d,e", n.Data["message_ids"])
	lines := strings.Split(n.Body, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "and 2 more", lines[3])
}

func TestDigestEmptyIsNoop(t *testing.T) {
	client := &fakeTopicSender{}
	require.NoError(t, NewFCMDigestSender(client, "t").SendDigest(context.Background(), nil))
	assert.Empty(t, client.sent)
}

func TestFCMAlerter(t *testing.T) {
	client := &fakeTopicSender{err: errors.New("quota")}
	a := NewFCMAlerter(client, "mail-alerts")

	err := a.Alert(context.Background(), "gmail", "provider authentication failed")
	assert.Error(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "Mail sync alert: gmail", client.sent[0].Title)
	assert.Equal(t, "gmail", client.sent[0].Data["provider"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
