package dynamic

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordAndSnapshot(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Empty())

	tr.Record("cookies", "app/layout")
	tr.RecordSync("time.Now", "app/page")

	got := tr.Accesses()
	require.Len(t, got, 2)
	assert.Equal(t, "cookies", got[0].Expression)
	assert.Equal(t, "time.Now", tr.SyncExpression())
	assert.False(t, tr.Empty())
}

func TestTracker_ConsumeMergesAndDrains(t *testing.T) {
	server := NewTracker()
	client := NewTracker()
	server.Record("headers", "")
	client.RecordSync("crypto.rand", "app/chart")

	server.Consume(client)

	require.Len(t, server.Accesses(), 2)
	assert.Equal(t, "crypto.rand", server.SyncExpression())
	assert.True(t, client.Empty())
	assert.Empty(t, client.SyncExpression())
}

func TestUsageError(t *testing.T) {
	err := fmt.Errorf("rendering failed: %w", &UsageError{Route: "/settings", Expression: "cookies"})
	assert.True(t, IsUsageError(err))
	assert.False(t, IsUsageError(fmt.Errorf("plain")))
}

func TestHanging_RejectsOnlyOnAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := Hanging[string](ctx, "cookies")

	select {
	case <-f.Done():
		t.Fatal("hanging future settled without abort")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	_, err := f.Get(context.Background())
	require.ErrorIs(t, err, ErrHanging)
	assert.Contains(t, err.Error(), "cookies")
}
