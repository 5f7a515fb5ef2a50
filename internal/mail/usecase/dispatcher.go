package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/pkg/logger"
)

// SweepAlertSource is the provider name used for alerts raised by the sweep.
const SweepAlertSource = "sweep-exhausted"

// DigestItem is one message line of a notification digest.
type DigestItem struct {
	MessageID  string    `json:"message_id"`
	Provider   string    `json:"provider"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview"`
	ReceivedAt time.Time `json:"received_at"`
}

// DigestSender delivers a digest to the user's devices.
type DigestSender interface {
	SendDigest(ctx context.Context, items []DigestItem) error
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// DispatcherConfig tunes the sweep.
type DispatcherConfig struct {
	Window      time.Duration
	Batch       int
	MaxAttempts int
}

// Dispatcher notifies about new messages and retries undelivered ones from the
// sweep. Delivery is at-least-once.
type Dispatcher struct {
	messages repository.MessageRepository
	sender   DigestSender
	alerter  Alerter
	cfg      DispatcherConfig
	now      func() time.Time
}

func NewDispatcher(messages repository.MessageRepository, sender DigestSender, alerter Alerter, cfg DispatcherConfig) *Dispatcher {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{messages: messages, sender: sender, alerter: alerter, cfg: cfg, now: time.Now}
}

// Dispatch sends one digest for ids. Delivered messages are tagged notified;
// on failure each message's attempt count grows so the sweep can retry it.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	msgs, err := d.messages.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load messages for digest: %w", err)
	}

	pending := make([]domain.StoredMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsNotified() {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	sendErr := d.notify(ctx, pending)
	var errs []error
	if sendErr != nil {
		errs = append(errs, sendErr)
	}
	for _, m := range pending {
		if sendErr == nil {
			if err := d.MarkNotified(ctx, m.ID); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if _, err := d.messages.IncrementNotifyAttempts(ctx, m.ID); err != nil {
			errs = append(errs, fmt.Errorf("record notify attempt for %s: %w", m.ID, err))
		}
	}
	return errors.Join(errs...)
}

// MarkNotified adds the notified tag to a message.
func (d *Dispatcher) MarkNotified(ctx context.Context, id string) error {
	_, err := d.messages.UpdateTags(ctx, id, func(tags domain.StringArray) domain.StringArray {
		return tags.With(domain.TagNotified)
	})
	if err != nil {
		return fmt.Errorf("mark %s notified: %w", id, err)
	}
	return nil
}

// Sweep retries notification for recent messages that were never marked notified.
// Messages past the attempt limit are tagged exhausted and reported to operators.
func (d *Dispatcher) Sweep(ctx context.Context) (*SweepResult, error) {
	log := logger.WithComponent("Sweep")
	cutoff := d.now().UTC().Add(-d.cfg.Window)

	msgs, err := d.messages.ListUnnotified(ctx, cutoff, d.cfg.Batch)
	if err != nil {
		return nil, fmt.Errorf("list unnotified messages: %w", err)
	}

	res := &SweepResult{Scanned: len(msgs)}
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if m.NotifyAttempts >= d.cfg.MaxAttempts {
			if err := d.exhaust(ctx, m); err != nil {
				log.WithError(err).WithField("message_id", m.ID).Error("Failed to mark message exhausted")
				continue
			}
			res.Exhausted++
			continue
		}

		if err := d.Dispatch(ctx, []string{m.ID}); err != nil {
			log.WithError(err).WithField("message_id", m.ID).Warn("Sweep delivery failed")
			res.Failed++
			continue
		}
		res.Delivered++
	}

	if res.Scanned > 0 {
		log.WithField("scanned", res.Scanned).
			WithField("delivered", res.Delivered).
			WithField("failed", res.Failed).
			WithField("exhausted", res.Exhausted).
			Info("Sweep finished")
	}
	return res, nil
}

func (d *Dispatcher) exhaust(ctx context.Context, m domain.StoredMessage) error {
	_, err := d.messages.UpdateTags(ctx, m.ID, func(tags domain.StringArray) domain.StringArray {
		return tags.With(domain.TagNotified).With(domain.TagNotifyExhausted)
	})
	if err != nil {
		return err
	}
	if d.alerter != nil {
		reason := fmt.Sprintf("notification for message %s (%s) gave up after %d attempts", m.ID, m.Provider, m.NotifyAttempts)
		if err := d.alerter.Alert(ctx, SweepAlertSource, reason); err != nil {
			logger.WithComponent("Sweep").WithError(err).Error("Failed to send alert")
		}
	}
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, msgs []domain.StoredMessage) error {
	if d.sender == nil {
		return errors.New("no digest sender configured")
	}
	items := make([]DigestItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, DigestItem{
			MessageID:  m.ID,
			Provider:   m.Provider,
			Sender:     m.Sender(),
			Subject:    m.Subject,
			Preview:    m.Snippet,
			ReceivedAt: m.ReceivedAt,
		})
	}
	return d.sender.SendDigest(ctx, items)
}
