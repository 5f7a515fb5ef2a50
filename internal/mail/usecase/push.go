package usecase

import (
	"context"
	"fmt"
	"strings"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/pkg/logger"
)

// PushOutcome reports what happened to one push notification.
type PushOutcome struct {
	Provider  string `json:"provider"`
	Duplicate bool   `json:"duplicate"`
	Queued    bool   `json:"queued"`
}

// HandlePush records a pushed cursor hint and queues a cycle unless the stored
// cursor already covers it. Storage failures are returned so the push is redelivered.
func (u *syncUsecase) HandlePush(ctx context.Context, account string, pushed domain.Cursor) (*PushOutcome, error) {
	provider, ok := u.cfg.Accounts[strings.ToLower(account)]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for account %s", domain.ErrProviderNotFound, account)
	}

	state, err := u.tracker.RecordPush(ctx, provider, pushed)
	if err != nil {
		return nil, fmt.Errorf("record push: %w", err)
	}

	out := &PushOutcome{Provider: provider}
	log := logger.WithComponent("Push").WithField("provider", provider).WithField("cursor", pushed.Token)

	if pushed.Ordered() && state.CursorPosition >= pushed.Position {
		out.Duplicate = true
		log.Debug("Push already covered by stored cursor")
		return out, nil
	}

	if u.trigger != nil {
		out.Queued = u.trigger.QueueJob(TriggerJob{Kind: JobSync, Provider: provider, Reason: "push"})
	}
	if !out.Queued {
		log.Warn("Sync queue full, push left for the next scheduled cycle")
	}
	return out, nil
}
