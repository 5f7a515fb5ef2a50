package fcm

import (
	"context"
	"fmt"

	"mailsync-backend/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// sender is the part of *messaging.Client the Client uses
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient sender
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.WithComponent("FCM").Info("Client initialized successfully")
	return &Client{
		messagingClient: messagingClient,
	}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string // Custom data payload
	// Click action
	ClickAction string // URL to open when notification is clicked
}

// SendToTopic publishes a notification to every device subscribed to topic
func (c *Client) SendToTopic(ctx context.Context, topic string, notification NotificationData) error {
	response, err := c.messagingClient.Send(ctx, buildTopicMessage(topic, notification))
	if err != nil {
		return fmt.Errorf("failed to send FCM message to topic %s: %w", topic, err)
	}

	logger.WithComponent("FCM").WithField("topic", topic).Debugf("Message sent successfully: %s", response)
	return nil
}

func buildTopicMessage(topic string, notification NotificationData) *messaging.Message {
	data := make(map[string]string, len(notification.Data)+1)
	for k, v := range notification.Data {
		data[k] = v
	}
	if notification.ClickAction != "" {
		data["click_action"] = notification.ClickAction
	}

	return &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}
}
