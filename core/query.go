package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/encodeous/sift/message"
	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
)

// childrenFor computes the spanning-tree children for a request: overlay
// neighbours that have not yet appeared on the message's route.
func (n *Node) childrenFor(msg network.Message) []network.NodeId {
	visited := map[network.NodeId]bool{
		msg.Origin(): true,
		n.Id():       true,
	}
	for _, el := range msg.Route() {
		visited[el.Sender] = true
		for _, dest := range el.NotWaitingDestinations {
			visited[dest] = true
		}
	}
	children := make([]network.NodeId, 0)
	for _, peer := range n.peers {
		if !visited[peer] {
			children = append(children, peer)
		}
	}
	return children
}

// forwardPlan describes how this node participates in a query: the fan-out
// element appended to forwarded requests, and the route of the node's own
// reply. An answering node that also forwards lists itself among its fan-out
// destinations, so the originator keeps waiting on it until its reply lands.
type forwardPlan struct {
	children   []network.NodeId
	forwardEl  network.NavigationElement
	replyRoute []network.NavigationElement
}

func (n *Node) planQuery(req network.Message) forwardPlan {
	self := n.Id()
	children := n.childrenFor(req)
	plan := forwardPlan{children: children}

	terminal := network.NavigationElement{
		Sender:                 self,
		NotWaitingDestinations: []network.NodeId{self},
	}

	switch {
	case n.env.NodeCfg.Relay && len(children) > 0:
		// pure forwarder: this hop is skipped entirely
		plan.forwardEl = network.NavigationElement{
			Sender:                 self,
			Skipping:               true,
			NotWaitingDestinations: children,
		}
	case len(children) > 0:
		plan.forwardEl = network.NavigationElement{
			Sender:                 self,
			Skipping:               true,
			NotWaitingDestinations: append([]network.NodeId{self}, children...),
		}
		plan.replyRoute = []network.NavigationElement{plan.forwardEl, terminal}
	default:
		// leaf: a relay with nobody to forward to still answers, with an
		// empty result, so its waiting path resolves
		plan.replyRoute = []network.NavigationElement{terminal}
	}
	return plan
}

func (n *Node) opSearchRange(ctx context.Context, arg any) (any, error) {
	req := arg.(*message.RangeRequest)
	plan := n.planQuery(req)

	for _, child := range plan.children {
		fwd := &message.RangeRequest{Base: req.Base, Query: req.Query, Radius: req.Radius}
		fwd.Elements = req.Forwarded(plan.forwardEl)
		if err := n.disp.Send(child, fwd); err != nil {
			n.env.Log.Warn("failed to forward query", "child", child, "err", err)
		}
	}
	if plan.replyRoute == nil {
		return nil, nil
	}

	var results []objects.RankedObject
	if !n.env.NodeCfg.Relay {
		var err error
		results, err = n.bucket.RangeSearch(req.Query, req.Radius)
		if err != nil {
			return nil, err
		}
	}
	reply := &message.RangeReply{
		ReplyBase: network.NewReplyBase(req, plan.replyRoute...),
		Results:   results,
	}
	return nil, n.disp.Send(req.Origin(), reply)
}

func (n *Node) opSearchKNN(ctx context.Context, arg any) (any, error) {
	req := arg.(*message.KNNRequest)
	plan := n.planQuery(req)

	for _, child := range plan.children {
		fwd := &message.KNNRequest{Base: req.Base, Query: req.Query, K: req.K}
		fwd.Elements = req.Forwarded(plan.forwardEl)
		if err := n.disp.Send(child, fwd); err != nil {
			n.env.Log.Warn("failed to forward query", "child", child, "err", err)
		}
	}
	if plan.replyRoute == nil {
		return nil, nil
	}

	var results []objects.RankedObject
	if !n.env.NodeCfg.Relay {
		var err error
		results, err = n.bucket.KNNSearch(req.Query, req.K)
		if err != nil {
			return nil, err
		}
	}
	reply := &message.KNNReply{
		ReplyBase: network.NewReplyBase(req, plan.replyRoute...),
		Results:   results,
	}
	return nil, n.disp.Send(req.Origin(), reply)
}

// mergeRanked combines result lists, deduplicating objects that reached the
// originator through more than one overlay path.
func mergeRanked(limit int, lists ...[]objects.RankedObject) []objects.RankedObject {
	seen := make(map[uuid.UUID]bool)
	merged := objects.NewRankedList(limit)
	for _, list := range lists {
		for _, ro := range list {
			if seen[ro.Object.ID] {
				continue
			}
			seen[ro.Object.ID] = true
			merged.Insert(ro)
		}
	}
	return merged.Items()
}

// RangeSearch runs a range query over the whole overlay and blocks until
// every reachable node answered or timeout elapsed (zero waits indefinitely).
func (n *Node) RangeSearch(ctx context.Context, query *objects.Object, radius float32, timeout time.Duration) (*objects.SearchResult, error) {
	n.env.Stats.Add("search.range", 1)
	local, err := n.localRange(query, radius)
	if err != nil {
		return nil, err
	}

	peers := n.peers
	if len(peers) == 0 {
		return &objects.SearchResult{Results: local, Complete: true}, nil
	}

	req := &message.RangeRequest{Base: network.NewBase(n.Id()), Query: query, Radius: radius}
	receiver, err := network.SendWaitReply[*message.RangeReply](n.disp, req, peers...)
	if err != nil {
		return nil, err
	}
	replies, err := receiver.GetReplies(ctx, timeout)
	if err != nil {
		return nil, err
	}

	lists := [][]objects.RankedObject{local}
	for _, reply := range replies {
		lists = append(lists, reply.Results)
	}
	return &objects.SearchResult{
		Results:   mergeRanked(0, lists...),
		Complete:  receiver.IsFinished(),
		Remaining: receiver.GetRemainingCount(),
	}, nil
}

// KNNSearch runs a k-nearest-neighbour query over the whole overlay.
func (n *Node) KNNSearch(ctx context.Context, query *objects.Object, k int, timeout time.Duration) (*objects.SearchResult, error) {
	n.env.Stats.Add("search.knn", 1)
	local, err := n.localKNN(query, k)
	if err != nil {
		return nil, err
	}

	peers := n.peers
	if len(peers) == 0 {
		return &objects.SearchResult{Results: local, Complete: true}, nil
	}

	req := &message.KNNRequest{Base: network.NewBase(n.Id()), Query: query, K: k}
	receiver, err := network.SendWaitReply[*message.KNNReply](n.disp, req, peers...)
	if err != nil {
		return nil, err
	}
	replies, err := receiver.GetReplies(ctx, timeout)
	if err != nil {
		return nil, err
	}

	lists := [][]objects.RankedObject{local}
	for _, reply := range replies {
		lists = append(lists, reply.Results)
	}
	return &objects.SearchResult{
		Results:   mergeRanked(k, lists...),
		Complete:  receiver.IsFinished(),
		Remaining: receiver.GetRemainingCount(),
	}, nil
}

func (n *Node) localRange(query *objects.Object, radius float32) ([]objects.RankedObject, error) {
	if n.env.NodeCfg.Relay {
		return nil, nil
	}
	return n.bucket.RangeSearch(query, radius)
}

func (n *Node) localKNN(query *objects.Object, k int) ([]objects.RankedObject, error) {
	if n.env.NodeCfg.Relay {
		return nil, nil
	}
	return n.bucket.KNNSearch(query, k)
}
