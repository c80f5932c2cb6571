package network

import "strings"

// NavigationPath is the ordered sequence of nodes a message has traversed,
// starting from the request originator. Paths are immutable; Append returns
// a copy with the extra hop.
type NavigationPath struct {
	nodes []NodeId
}

func NewNavigationPath(nodes ...NodeId) NavigationPath {
	p := NavigationPath{nodes: make([]NodeId, len(nodes))}
	copy(p.nodes, nodes)
	return p
}

func (p NavigationPath) Append(node NodeId) NavigationPath {
	next := make([]NodeId, len(p.nodes)+1)
	copy(next, p.nodes)
	next[len(p.nodes)] = node
	return NavigationPath{nodes: next}
}

func (p NavigationPath) Len() int {
	return len(p.nodes)
}

// Parent returns the path without its last hop.
func (p NavigationPath) Parent() NavigationPath {
	if len(p.nodes) == 0 {
		return NavigationPath{}
	}
	return NewNavigationPath(p.nodes[:len(p.nodes)-1]...)
}

// Last returns the final hop, or "" for the empty path.
func (p NavigationPath) Last() NodeId {
	if len(p.nodes) == 0 {
		return ""
	}
	return p.nodes[len(p.nodes)-1]
}

func (p NavigationPath) Nodes() []NodeId {
	out := make([]NodeId, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// PathKey is the canonical comparable form of a NavigationPath, usable as a
// map key. Node names never contain '/' (enforced by config validation).
type PathKey string

func (p NavigationPath) Key() PathKey {
	var sb strings.Builder
	for i, n := range p.nodes {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(string(n))
	}
	return PathKey(sb.String())
}

func (p NavigationPath) String() string {
	return "[" + string(p.Key()) + "]"
}

// NavigationElement records one hop's forwarding decision. Sender is the node
// that emitted the message at that hop. A skipping hop forwarded the request
// to NotWaitingDestinations without itself becoming a wait point; on the final
// element of a reply, NotWaitingDestinations names the nodes satisfied by the
// reply itself (normally just the replier).
type NavigationElement struct {
	Sender                 NodeId   `cbor:"sender"`
	Skipping               bool     `cbor:"skipping,omitempty"`
	NotWaitingDestinations []NodeId `cbor:"destinations,omitempty"`
}
