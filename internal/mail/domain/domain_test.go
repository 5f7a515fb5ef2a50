package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayRoundTrip(t *testing.T) {
	v, err := StringArray{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	empty, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	var a StringArray
	require.NoError(t, a.Scan([]byte(`["x"]`)))
	assert.Equal(t, StringArray{"x"}, a)
	require.NoError(t, a.Scan(nil))
	assert.Equal(t, StringArray{}, a)
}

func TestStringArrayWithWithout(t *testing.T) {
	tags := StringArray{TagImportant}
	tags = tags.With(TagNotified).With(TagNotified)
	assert.Equal(t, StringArray{TagImportant, TagNotified}, tags)
	assert.True(t, tags.Contains(TagNotified))
	assert.Equal(t, StringArray{TagNotified}, tags.Without(TagImportant))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorStaleCursor, ClassifyError(fmt.Errorf("history.list: %w", ErrCursorExpired)))
	assert.Equal(t, ErrorAuth, ClassifyError(fmt.Errorf("wrap: %w", ErrUnauthorized)))
	assert.Equal(t, ErrorAuth, ClassifyError(ErrCredentialsRequired))
	assert.Equal(t, ErrorTransient, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ErrorTransient, ClassifyError(errors.New("connection reset")))
}

func TestCursor(t *testing.T) {
	assert.True(t, Cursor{}.IsZero())
	assert.False(t, Cursor{Token: "delta"}.Ordered())
	assert.True(t, Cursor{Token: "5", Position: 5}.Ordered())
}
