package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/usecase"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PushHandler is the intake the subscriber feeds.
type PushHandler interface {
	HandlePush(ctx context.Context, account string, pushed domain.Cursor) (*usecase.PushOutcome, error)
}

// Subscriber pulls Gmail notifications from a Pub/Sub subscription. It is the
// pull-mode counterpart of the push webhook.
type Subscriber struct {
	pubsubClient *pubsub.Client
	handler      PushHandler
	topicName    string
	subName      string
}

func NewSubscriber(ctx context.Context, projectID, topicName, subName, credentialsFile string, handler PushHandler) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	if subName == "" {
		subName = topicName + "-sub"
	}
	return &Subscriber{
		pubsubClient: client,
		handler:      handler,
		topicName:    topicName,
		subName:      subName,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled. The subscription is
// created when missing and the topic exists.
func (s *Subscriber) Start(ctx context.Context) error {
	log := logger.WithComponent("PubSub").WithField("subscription", s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic: %w", err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", s.topicName)
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 30 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		log.Info("Created subscription")
	}

	log.Info("Listening for mailbox notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handle(ctx, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

func (s *Subscriber) Close() error {
	return s.pubsubClient.Close()
}

// handle reports whether the message should be acknowledged. Only failures to
// record the push ask for redelivery.
func (s *Subscriber) handle(ctx context.Context, data []byte) bool {
	log := logger.WithComponent("PubSub")

	n, err := gmail.ParseNotification(data)
	if err != nil {
		log.WithError(err).Warn("Dropping undecodable notification")
		return true
	}

	pushed := domain.Cursor{Token: strconv.FormatUint(n.HistoryID, 10), Position: int64(n.HistoryID)}
	out, err := s.handler.HandlePush(ctx, n.EmailAddress, pushed)
	switch {
	case errors.Is(err, domain.ErrProviderNotFound):
		log.WithField("account", n.EmailAddress).Warn("Dropping notification for unknown account")
		return true
	case err != nil:
		log.WithError(err).Error("Failed to record notification")
		return false
	}

	log.WithField("provider", out.Provider).
		WithField("history_id", n.HistoryID).
		WithField("duplicate", out.Duplicate).
		Debug("Notification recorded")
	return true
}
