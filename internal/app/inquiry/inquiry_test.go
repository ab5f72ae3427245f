package inquiry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelbot/internal/app/kv"
)

func TestIsSubmission(t *testing.T) {
	assert.True(t, IsSubmission("送信完了"))
	assert.True(t, IsSubmission("送信完了 foo"))
	assert.False(t, IsSubmission("foo 送信完了"))
	assert.False(t, IsSubmission(""))
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	l := NewLog(kv.NewMemory())

	n, err := l.Append(ctx, "送信完了 foo")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = l.Append(ctx, "送信完了 bar")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	items, err := l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"送信完了 foo", "送信完了 bar"}, items)
}
