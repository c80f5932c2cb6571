package state

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/encodeous/sift/network"
)

func TestParseGraph_SimpleGraph(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5"}
	input := `1, 2
3, 4
1,3,5`
	pairs, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.NoError(t, err)
	assert.ElementsMatch(t, pairs, []Pair[network.NodeId, network.NodeId]{
		{"1", "2"},
		{"3", "4"},
		{"1", "3"},
		{"3", "5"},
		{"1", "5"},
	})
}

func TestParseGraph_Groups(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5", "6", "7"}
	input := `a = 1,2
b=3,,,4
c=5,6
d=a,b
d,d
7,d`
	pairs, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.NoError(t, err)
	assert.ElementsMatch(t, pairs, []Pair[network.NodeId, network.NodeId]{
		// d,d
		{"1", "2"},
		{"1", "3"},
		{"1", "4"},
		{"2", "3"},
		{"2", "4"},
		{"3", "4"},
		// 7,d
		{"1", "7"},
		{"2", "7"},
		{"3", "7"},
		{"4", "7"},
	})
}

func TestParseGraph_Cycle(t *testing.T) {
	nodes := []string{}
	input := `a = b
b = c
c = a`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "cycle detected in graph: [a b c]")
}

func TestParseGraph_DupGroupName(t *testing.T) {
	nodes := []string{}
	input := `a = b
a = b
b = b`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "duplicate group name: a")
}

func TestParseGraph_SymbolError(t *testing.T) {
	nodes := []string{"1"}
	input := `a = 1
b = 2`
	_, err := ParseGraph(strings.Split(input, "\n"), nodes)
	assert.ErrorContains(t, err, "2 is not a valid node/group")
}

func TestParseGraph_SingleNodePairing(t *testing.T) {
	nodes := []string{"1"}
	_, err := ParseGraph([]string{"1"}, nodes)
	assert.ErrorContains(t, err, "invalid pairing")
}

func TestParseOverlay(t *testing.T) {
	cfg := NetworkCfg{
		Nodes: []PeerCfg{
			{Id: "a"}, {Id: "b"}, {Id: "c"},
		},
		Graph: []string{
			"a, b",
			"b, c",
		},
	}
	overlay, err := cfg.ParseOverlay()
	assert.NoError(t, err)
	assert.ElementsMatch(t, overlay.Peers("b"), []network.NodeId{"a", "c"})
	assert.ElementsMatch(t, overlay.Peers("a"), []network.NodeId{"b"})
	assert.Empty(t, overlay.Peers("unknown"))
}

func TestParseOverlayInvalidGraph(t *testing.T) {
	cfg := NetworkCfg{
		Nodes: []PeerCfg{{Id: "a"}, {Id: "b"}},
		Graph: []string{"a, z"},
	}
	_, err := cfg.ParseOverlay()
	assert.ErrorContains(t, err, "z is not a valid node/group")
}

func TestFindNode(t *testing.T) {
	cfg := NetworkCfg{
		Nodes: []PeerCfg{
			{Id: "a", Endpoint: netip.MustParseAddrPort("10.0.0.1:4000")},
		},
	}
	peer, err := cfg.FindNode("a")
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.1:4000", peer.Endpoint.String())

	_, err = cfg.FindNode("z")
	assert.Error(t, err)
}
