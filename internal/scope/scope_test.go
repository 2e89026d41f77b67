package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renderloop/internal/resume"
	"github.com/vk/renderloop/internal/stage"
)

func TestScopeVariants(t *testing.T) {
	rc := resume.NewCache()
	ctx := context.Background()

	prospective := NewProspective(ctx, rc, nil)
	require.NotNil(t, prospective.CacheReads())
	require.Nil(t, prospective.Stages(), "prospective pass is not raced against task boundaries")
	require.NotNil(t, prospective.Tracker())

	final := NewFinal(ctx, rc)
	require.Nil(t, final.CacheReads(), "final pass runs against a warm cache")
	require.NotNil(t, final.Stages())
	require.NotEqual(t, prospective.ID(), final.ID())
	assert.Same(t, rc, final.ResumeCache())

	var s Scope = final
	_, ok := s.(*Prerender)
	assert.True(t, ok)
}

func TestFinalScope_AbortAbandonsStages(t *testing.T) {
	final := NewFinal(context.Background(), resume.NewCache())
	final.CancelRender(errors.New("sync dynamic IO"))

	err := final.Stages().Wait(context.Background(), stage.Runtime)
	require.ErrorIs(t, err, stage.ErrInterrupted)
}

func TestRequestScope_NoAbortWiring(t *testing.T) {
	req := NewRequest(context.Background(), resume.NewCache())
	require.Nil(t, req.CacheReads())
	require.NotNil(t, req.Stages())

	// Cancelling the render context must not abandon the warm pass.
	req.CancelRender(errors.New("unrelated"))
	assert.False(t, req.Stages().Abandoned())
}

func TestLifetime_MergeKeepsMinimums(t *testing.T) {
	l := NewLifetime()
	r, e, s := l.Snapshot()
	assert.Zero(t, r+e+s)

	l.Merge(300, 0, 60)
	l.Merge(60, 3600, 0)

	r, e, s = l.Snapshot()
	assert.Equal(t, 60, r)
	assert.Equal(t, 3600, e)
	assert.Equal(t, 60, s)
}
