package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache()
	assert.False(t, c.Has("posts"))

	c.Put("posts", []byte("payload"))
	got, ok := c.Get("posts")
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))
	assert.Equal(t, 1, c.Len())
}

func TestCache_RevalidateWindow(t *testing.T) {
	c := NewCache()
	c.PutWithRevalidate("posts", []byte("payload"), 60)

	assert.Equal(t, 60, c.Revalidate("posts"))
	assert.Equal(t, 0, c.Revalidate("missing"))
}

func TestCache_RefillKeepsLatestPayload(t *testing.T) {
	c := NewCache()
	c.Put("k", []byte("v1"))
	c.Put("k", []byte("v2"))

	got, _ := c.Get("k")
	assert.Equal(t, "v2", string(got))
	assert.Equal(t, 1, c.Len())
}
