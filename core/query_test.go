package core

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
	"github.com/encodeous/sift/state"
)

func resultLocators(res *objects.SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, ro := range res.Results {
		out[i] = ro.Object.Locator
	}
	return out
}

func TestRangeSearchSpansOverlay(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newTestHarness(t)
	defer h.stop()
	netCfg := lineNetwork("a", "b", "c")
	startLine(h, netCfg, nil)

	ctx := context.Background()
	require.NoError(t, h.nodes["a"].Insert(ctx, "", objects.New("on-a", []float32{1})))
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("on-b", []float32{2})))
	require.NoError(t, h.nodes["c"].Insert(ctx, "", objects.New("on-c", []float32{3})))

	res, err := h.nodes["a"].RangeSearch(ctx, objects.New("", []float32{0}), 100, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, []string{"on-a", "on-b", "on-c"}, resultLocators(res))
}

func TestRangeSearchRadius(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newTestHarness(t)
	defer h.stop()
	netCfg := lineNetwork("a", "b")
	startLine(h, netCfg, nil)

	ctx := context.Background()
	require.NoError(t, h.nodes["a"].Insert(ctx, "", objects.New("near", []float32{1})))
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("far", []float32{50})))

	res, err := h.nodes["a"].RangeSearch(ctx, objects.New("", []float32{0}), 10, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, []string{"near"}, resultLocators(res))
}

func TestKNNSearchThroughRelay(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newTestHarness(t)
	defer h.stop()
	// r only forwards between a and b
	netCfg := lineNetwork("a", "r", "b")
	startLine(h, netCfg, map[network.NodeId]bool{"r": true})

	ctx := context.Background()
	require.NoError(t, h.nodes["a"].Insert(ctx, "", objects.New("on-a", []float32{1})))
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("on-b", []float32{2})))

	res, err := h.nodes["a"].KNNSearch(ctx, objects.New("", []float32{0}), 10, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, []string{"on-a", "on-b"}, resultLocators(res))
}

func TestKNNSearchLimit(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newTestHarness(t)
	defer h.stop()
	netCfg := lineNetwork("a", "b")
	startLine(h, netCfg, nil)

	ctx := context.Background()
	require.NoError(t, h.nodes["a"].Insert(ctx, "", objects.New("d1", []float32{1})))
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("d2", []float32{2})))
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("d9", []float32{9})))

	res, err := h.nodes["a"].KNNSearch(ctx, objects.New("", []float32{0}), 2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, resultLocators(res))
}

func TestSearchTimeoutPartial(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newTestHarness(t)
	defer h.stop()

	// c is a black hole: it accepts protocol connections and never answers
	sink, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()
	go func() {
		for {
			conn, err := sink.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()

	netCfg := state.NetworkCfg{
		Nodes: []state.PeerCfg{{Id: "a"}, {Id: "b"}, {Id: "c"}},
		Graph: []string{"a, b", "a, c"},
	}
	h.addNode(netCfg, state.NodeCfg{Id: "a", Bind: "127.0.0.1:0"})
	h.addNode(netCfg, state.NodeCfg{Id: "b", Bind: "127.0.0.1:0"})
	h.setAddr("c", sink.Addr().String())

	ctx := context.Background()
	require.NoError(t, h.nodes["b"].Insert(ctx, "", objects.New("on-b", []float32{1})))

	res, err := h.nodes["a"].RangeSearch(ctx, objects.New("", []float32{0}), 100, 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, []string{"on-b"}, resultLocators(res))
}

func TestMergeRankedDeduplicates(t *testing.T) {
	shared := objects.New("shared", []float32{1})
	a := []objects.RankedObject{
		{Object: shared, Distance: 1},
		{Object: objects.New("only-a", []float32{2}), Distance: 2},
	}
	b := []objects.RankedObject{
		{Object: shared, Distance: 1},
		{Object: objects.New("only-b", []float32{3}), Distance: 3},
	}

	merged := mergeRanked(0, a, b)
	require.Len(t, merged, 3)
	assert.Equal(t, "shared", merged[0].Object.Locator)

	top := mergeRanked(2, a, b)
	require.Len(t, top, 2)
	assert.Equal(t, "shared", top[0].Object.Locator)
	assert.Equal(t, "only-a", top[1].Object.Locator)
}
