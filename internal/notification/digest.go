package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/fcm"
	"mailsync-backend/pkg/logger"
)

const maxSubjectLen = 100

// topicSender is satisfied by *fcm.Client
type topicSender interface {
	SendToTopic(ctx context.Context, topic string, notification fcm.NotificationData) error
}

// FCMDigestSender publishes new-mail digests to an FCM topic.
type FCMDigestSender struct {
	client topicSender
	topic  string
}

func NewFCMDigestSender(client topicSender, topic string) *FCMDigestSender {
	return &FCMDigestSender{client: client, topic: topic}
}

func (s *FCMDigestSender) SendDigest(ctx context.Context, items []usecase.DigestItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.client.SendToTopic(ctx, s.topic, buildDigest(items))
}

func buildDigest(items []usecase.DigestItem) fcm.NotificationData {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.MessageID
	}

	data := map[string]string{
		"type":        "new_mail",
		"count":       strconv.Itoa(len(items)),
		"message_ids": strings.Join(ids, ","),
	}

	if len(items) == 1 {
		it := items[0]
		sender := it.Sender
		if sender == "" {
			sender = "Unknown sender"
		}
		body := truncate(it.Subject, maxSubjectLen)
		if body == "" {
			body = "(No subject)"
		}
		data["provider"] = it.Provider
		return fcm.NotificationData{
			Title:       fmt.Sprintf("New mail from %s", sender),
			Body:        body,
			Data:        data,
			ClickAction: "/messages/" + it.MessageID,
		}
	}

	lines := make([]string, 0, 3)
	for i, it := range items {
		if i == 3 {
			lines = append(lines, fmt.Sprintf("and %d more", len(items)-3))
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", it.Sender, truncate(it.Subject, 60)))
	}
	return fcm.NotificationData{
		Title:       fmt.Sprintf("%d new messages", len(items)),
		Body:        strings.Join(lines, "\n"),
		Data:        data,
		ClickAction: "/messages",
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// LogDigestSender only logs digests. It is used when FCM is not configured.
type LogDigestSender struct{}

func (LogDigestSender) SendDigest(ctx context.Context, items []usecase.DigestItem) error {
	for _, it := range items {
		logger.WithComponent("Digest").
			WithField("message_id", it.MessageID).
			WithField("provider", it.Provider).
			WithField("sender", it.Sender).
			Infof("New mail: %s", it.Subject)
	}
	return nil
}
