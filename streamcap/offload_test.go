package streamcap

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelMarks/taskflow/device"
)

func TestOffloadCompilesOnceAcrossLaunches(t *testing.T) {
	c := newCapturer(t, 2)
	buf := make([]byte, 8)

	a, err := c.Memset(buf, 1, 8)
	require.NoError(t, err)
	b, err := c.Memset(buf, 2, 8)
	require.NoError(t, err)
	require.NoError(t, a.Precede(b))

	require.NoError(t, c.Offload(context.Background()))
	require.NoError(t, c.Offload(context.Background()))

	// Two launches against the same cached executable.
	assert.Equal(t, 1, c.compiles)
	assert.Equal(t, 2, c.launches)
	assert.True(t, c.Executed())
}

func TestTopologyEditInvalidatesCache(t *testing.T) {
	c := newCapturer(t, 2)
	buf := make([]byte, 8)

	a, err := c.Memset(buf, 1, 8)
	require.NoError(t, err)
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, 1, c.compiles)

	// A new node and a new edge each force recompilation.
	b, err := c.Memset(buf, 2, 8)
	require.NoError(t, err)
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, 2, c.compiles)

	require.NoError(t, a.Precede(b))
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, 3, c.compiles)
}

func TestRebindInvalidatesExactlyOnce(t *testing.T) {
	c := newCapturer(t, 2)
	buf := make([]byte, 8)

	h, err := c.Memset(buf, 1, 8)
	require.NoError(t, err)
	require.NoError(t, c.Offload(context.Background()))
	require.Equal(t, 1, c.compiles)

	require.NoError(t, c.RebindMemset(h, buf, 9, 8))
	require.NoError(t, c.Offload(context.Background()))
	require.NoError(t, c.Offload(context.Background()))

	// Exactly one recompilation across both post-rebind launches.
	assert.Equal(t, 2, c.compiles)
	assert.Equal(t, 3, c.launches)
	assert.Equal(t, bytes.Repeat([]byte{9}, 8), buf)
}

func TestRebindPreservesEdges(t *testing.T) {
	c := newCapturer(t, 2)
	buf := make([]byte, 8)

	a, err := c.Memset(buf, 1, 8)
	require.NoError(t, err)
	b, err := c.Memset(buf, 2, 8)
	require.NoError(t, err)
	cNode, err := c.Memset(buf, 3, 8)
	require.NoError(t, err)
	require.NoError(t, a.Precede(b))
	require.NoError(t, b.Precede(cNode))

	before, _ := c.Graph().Node(b.ID())
	preds, succs := before.Preds(), before.Succs()

	// Rebinding to different arguments keeps identity and precedence.
	require.NoError(t, c.RebindMemset(b, buf, 7, 8))

	after, _ := c.Graph().Node(b.ID())
	assert.Equal(t, preds, after.Preds())
	assert.Equal(t, succs, after.Succs())

	require.NoError(t, c.Offload(context.Background()))
	// c still runs last.
	assert.Equal(t, bytes.Repeat([]byte{3}, 8), buf)
}

func TestRebindKernelAndCopyAndOn(t *testing.T) {
	c := newCapturer(t, 2)
	src := bytes.Repeat([]byte{5}, 4)
	dst := make([]byte, 4)

	h, err := c.Kernel(LaunchConfig{Grid: 1, Block: 1}, func(context.Context, LaunchConfig, []any) error {
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.RebindCopy(h, dst, src, 4))
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, src, dst)

	var hits int32
	require.NoError(t, c.RebindOn(h, func(lane device.Lane) error {
		lane.Async(func(context.Context) error {
			atomic.AddInt32(&hits, 1)
			return nil
		})
		return nil
	}))
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	shaped := 0
	require.NoError(t, c.RebindKernel(h, LaunchConfig{Grid: 8, Block: 8}, func(_ context.Context, cfg LaunchConfig, _ []any) error {
		shaped = cfg.Grid * cfg.Block
		return nil
	}))
	require.NoError(t, c.Offload(context.Background()))
	assert.Equal(t, 64, shaped)

	assert.Error(t, c.RebindKernel(h, LaunchConfig{}, nil))
}

func TestOffloadNSingleNode(t *testing.T) {
	c := newCapturer(t, 1)

	runs := 0
	_, err := c.Capture(func(lane device.Lane) error {
		lane.Async(func(context.Context) error {
			runs++
			return nil
		})
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.OffloadN(context.Background(), 3))
	assert.Equal(t, 3, runs)
	assert.Equal(t, 3, c.launches)
	assert.Equal(t, 1, c.compiles)
}

func TestOffloadUntil(t *testing.T) {
	c := newCapturer(t, 1)
	buf := make([]byte, 1)

	_, err := c.Memset(buf, 1, 1)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, c.OffloadUntil(context.Background(), func() bool {
		calls++
		return calls == 5
	}))

	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, c.launches)
	assert.Equal(t, 1, c.compiles)
}

func TestOffloadNZero(t *testing.T) {
	c := newCapturer(t, 1)
	buf := make([]byte, 1)
	_, err := c.Memset(buf, 1, 1)
	require.NoError(t, err)

	require.NoError(t, c.OffloadN(context.Background(), 0))
	assert.Zero(t, c.launches)
	assert.False(t, c.Executed())
}
