package notification

import (
	"context"

	"mailsync-backend/pkg/fcm"
	"mailsync-backend/pkg/logger"
)

// FCMAlerter publishes operator alerts to an FCM topic and logs them.
type FCMAlerter struct {
	client topicSender
	topic  string
}

func NewFCMAlerter(client topicSender, topic string) *FCMAlerter {
	return &FCMAlerter{client: client, topic: topic}
}

func (a *FCMAlerter) Alert(ctx context.Context, provider, reason string) error {
	LogAlerter{}.Alert(ctx, provider, reason)
	return a.client.SendToTopic(ctx, a.topic, fcm.NotificationData{
		Title: "Mail sync alert: " + provider,
		Body:  truncate(reason, 200),
		Data: map[string]string{
			"type":     "sync_alert",
			"provider": provider,
		},
		ClickAction: "/providers",
	})
}

// LogAlerter writes alerts to the log only.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, provider, reason string) error {
	logger.WithComponent("Alert").WithField("provider", provider).Error(reason)
	return nil
}
