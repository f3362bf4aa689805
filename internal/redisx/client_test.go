package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupSeenAndMark(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	defer rdb.Close()

	d := &Dedup{Redis: rdb, Service: "webhook", TTL: time.Minute}
	ctx := context.Background()

	seen, err := d.Seen(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "cs_test_1"))

	seen, err = d.Seen(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("dedup:webhook:cs_test_1"))

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
