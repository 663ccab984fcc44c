package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDeleteRemovesMatchingKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("groups:containing:user:alice", "[]"))
	require.NoError(t, mr.Set("groups:containing:group:students", "[]"))
	require.NoError(t, mr.Set("session:abc", "{}"))

	deleted, err := ScanDelete(context.Background(), client, "groups:containing:*")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.True(t, mr.Exists("session:abc"))
	assert.False(t, mr.Exists("groups:containing:user:alice"))
}
