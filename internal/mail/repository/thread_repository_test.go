package repository_test

import (
	"context"
	"testing"
	"time"

	"mailsync-backend/internal/mail/domain"
	"mailsync-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThread(id, provider, ptid, origin, subject string, updated time.Time) *domain.StoredThread {
	return &domain.StoredThread{
		ID:               id,
		Provider:         provider,
		ProviderThreadID: &ptid,
		OriginThreadID:   origin,
		SubjectLast:      subject,
		CreatedAt:        updated,
		UpdatedAt:        updated,
	}
}

func TestThreadCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	threads := testutil.NewTestStore(t).Threads()
	now := time.Now().UTC()

	created, err := threads.CreateIfAbsent(ctx, newThread("a", "p1", "t1", "t1", "Hello", now))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = threads.CreateIfAbsent(ctx, newThread("b", "p1", "t1", "t1", "Other", now))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := threads.FindByProviderThreadID(ctx, "p1", "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "Hello", got.SubjectLast)

	require.NoError(t, threads.UpdateSubject(ctx, "a", "Re: Hello"))
	got, err = threads.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Re: Hello", got.SubjectLast)

	none, err := threads.FindByProviderThreadID(ctx, "p2", "t1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestThreadFindSplitSiblings(t *testing.T) {
	ctx := context.Background()
	threads := testutil.NewTestStore(t).Threads()
	now := time.Now().UTC()

	_, err := threads.CreateIfAbsent(ctx, newThread("root", "p1", "t1", "t1", "Budget", now))
	require.NoError(t, err)
	_, err = threads.CreateIfAbsent(ctx, newThread("older", "p1", "t1_1", "t1", "Lunch", now.Add(-2*time.Hour)))
	require.NoError(t, err)
	_, err = threads.CreateIfAbsent(ctx, newThread("newer", "p1", "t1_2", "t1", "Party", now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = threads.CreateIfAbsent(ctx, newThread("other", "p1", "t2_1", "t2", "Lunch", now))
	require.NoError(t, err)

	siblings, err := threads.FindSplitSiblings(ctx, "p1", "t1")
	require.NoError(t, err)
	require.Len(t, siblings, 2)
	assert.Equal(t, "newer", siblings[0].ID)
	assert.Equal(t, "older", siblings[1].ID)

	n, err := threads.Count(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}
