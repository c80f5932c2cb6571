package state

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/encodeous/sift/network"
)

// PeerCfg is the network-wide public description of one node.
type PeerCfg struct {
	Id       network.NodeId
	PubKey   SiftPublicKey  `yaml:",omitempty"`
	Endpoint netip.AddrPort // protocol bind address, reachable by peers
}

// NetworkCfg is the network-global configuration shared by every node.
type NetworkCfg struct {
	Nodes     []PeerCfg
	Graph     []string // overlay adjacency, see ParseGraph
	Metric    string   `yaml:",omitempty"` // distance family, default l2
	Timestamp int64    `yaml:",omitempty"`
}

// NodeCfg is the node-local configuration.
type NodeCfg struct {
	Id       network.NodeId
	Key      SiftPrivateKey
	Bind     string `yaml:",omitempty"` // protocol listen address, defaults to the node's configured endpoint
	HttpBind string `yaml:"http_bind,omitempty"`
	Capacity int    `yaml:",omitempty"` // bucket object limit, 0 = unbounded
	Relay    bool   `yaml:",omitempty"` // forward queries without answering them
	LogPath  string `yaml:"log_path,omitempty"`
}

func (c *NetworkCfg) FindNode(id network.NodeId) (PeerCfg, error) {
	idx := slices.IndexFunc(c.Nodes, func(cfg PeerCfg) bool {
		return cfg.Id == id
	})
	if idx == -1 {
		return PeerCfg{}, fmt.Errorf("node %s not found", id)
	}
	return c.Nodes[idx], nil
}

// Overlay is the evaluated overlay topology. Parse it once at startup; graph
// evaluation is too heavy for the query path.
type Overlay struct {
	peers map[network.NodeId][]network.NodeId
}

// ParseOverlay evaluates the config's graph description down to a neighbour
// map.
func (c *NetworkCfg) ParseOverlay() (*Overlay, error) {
	allNodes := make([]string, 0, len(c.Nodes))
	for _, node := range c.Nodes {
		allNodes = append(allNodes, string(node.Id))
	}
	pairs, err := ParseGraph(c.Graph, allNodes)
	if err != nil {
		return nil, err
	}
	o := &Overlay{peers: make(map[network.NodeId][]network.NodeId)}
	for _, edge := range pairs {
		o.peers[edge.V1] = append(o.peers[edge.V1], edge.V2)
		o.peers[edge.V2] = append(o.peers[edge.V2], edge.V1)
	}
	return o, nil
}

// Peers returns the overlay neighbours of the given node.
func (o *Overlay) Peers(id network.NodeId) []network.NodeId {
	return o.peers[id]
}

// ParseGraph evaluates an overlay graph description down to concrete node
// pairs. Each line is either a group definition or a pairing:
//
//	rack1 = node1, node2, node3
//	rack2 = node4, node5
//	rack1, rack2, gateway    // interconnects the three symbols, not within a group
//	rack1, rack1             // full mesh within rack1
//	node8, node9
//
// nodes is the set of terminal node names every symbol must resolve to.
func ParseGraph(graph []string, nodes []string) ([]Pair[network.NodeId, network.NodeId], error) {
	groups := make(map[string][]string)
	symbolPairs := make([]Pair[string, string], 0)

	symbols := slices.Clone(nodes)
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		name, _, isGroup := strings.Cut(line, "=")
		if !isGroup {
			continue
		}
		name = strings.TrimSpace(name)
		if strings.Contains(line[strings.Index(line, "=")+1:], "=") {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		if slices.Contains(nodes, name) {
			return nil, fmt.Errorf("group name must not be a node name: %s", name)
		}
		symbols = append(symbols, name)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if name, members, isGroup := strings.Cut(line, "="); isGroup {
			name = strings.TrimSpace(name)
			if _, dup := groups[name]; dup {
				return nil, fmt.Errorf("duplicate group name: %s", name)
			}
			lst, err := parseSymbolList(members, symbols)
			if err != nil {
				return nil, err
			}
			groups[name] = lst
		} else {
			names, err := parseSymbolList(line, symbols)
			if err != nil {
				return nil, err
			}
			if len(names) < 2 {
				return nil, fmt.Errorf("invalid pairing, %v", names)
			}
			for i, a := range names {
				for _, b := range names[i+1:] {
					symbolPairs = append(symbolPairs, MakeSortedPair(a, b))
				}
			}
			SortPairs(symbolPairs)
			symbolPairs = slices.Compact(symbolPairs)
		}
	}

	resolved, err := resolveGroups(groups, nodes)
	if err != nil {
		return nil, err
	}

	nodesOf := func(sym string) []network.NodeId {
		if slices.Contains(nodes, sym) {
			return []network.NodeId{network.NodeId(sym)}
		}
		out := make([]network.NodeId, 0, len(resolved[sym]))
		for _, n := range resolved[sym] {
			out = append(out, network.NodeId(n))
		}
		return out
	}

	pairings := make([]Pair[network.NodeId, network.NodeId], 0)
	for _, sp := range symbolPairs {
		for _, a := range nodesOf(sp.V1) {
			for _, b := range nodesOf(sp.V2) {
				if a != b {
					pairings = append(pairings, MakeSortedPair(a, b))
				}
			}
		}
	}
	SortPairs(pairings)
	pairings = slices.Compact(pairings)
	return pairings, nil
}

// resolveGroups flattens every group down to terminal node names. Groups may
// reference other groups; the loop makes progress only when all of a group's
// referenced groups are already flat, so a reference cycle stalls it.
func resolveGroups(groups map[string][]string, nodes []string) (map[string][]string, error) {
	resolved := make(map[string][]string, len(groups))
	for len(resolved) < len(groups) {
		progress := false
		for name, members := range groups {
			if _, done := resolved[name]; done {
				continue
			}
			flat := make([]string, 0, len(members))
			ok := true
			for _, m := range members {
				if slices.Contains(nodes, m) {
					flat = append(flat, m)
					continue
				}
				sub, done := resolved[m]
				if !done {
					ok = false
					break
				}
				flat = append(flat, sub...)
			}
			if !ok {
				continue
			}
			slices.Sort(flat)
			resolved[name] = slices.Compact(flat)
			progress = true
		}
		if !progress {
			stuck := make([]string, 0)
			for name := range groups {
				if _, done := resolved[name]; !done {
					stuck = append(stuck, name)
				}
			}
			slices.Sort(stuck)
			return nil, fmt.Errorf("cycle detected in graph: %v", stuck)
		}
	}
	return resolved, nil
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	line := make([]string, 0)
	for _, part := range strings.Split(strings.TrimSpace(s), ",") {
		x := strings.TrimSpace(part)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf("%s is not a valid node/group", x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("node/group list must not be empty")
	}
	slices.Sort(line)
	return line, nil
}
