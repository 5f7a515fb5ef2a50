package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Threads().CreateIfAbsent(ctx, newThread("a", "p1", "t1", "t1", "Hello", time.Now().UTC())); err != nil {
			return err
		}
		if _, err := tx.Messages().CreateIfAbsent(ctx, newMessage("m", "p1", "m1", time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	threads, err := store.Threads().Count(ctx, "")
	require.NoError(t, err)
	msgs, err := store.Messages().Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, threads)
	assert.Zero(t, msgs)
}
