package core

import (
	"context"
	"fmt"
	"time"

	"github.com/encodeous/sift/bucket"
	"github.com/encodeous/sift/codec"
	"github.com/encodeous/sift/executor"
	"github.com/encodeous/sift/message"
	"github.com/encodeous/sift/netbucket"
	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
	"github.com/encodeous/sift/stats"
)

// Operation names served by the node's executor.
const (
	OpPing        = "ping"
	OpSearchRange = "search.range"
	OpSearchKNN   = "search.knn"
	OpBucket      = "bucket.manipulate"
)

// Node is one running sift node: a bucket of similarity objects, a protocol
// dispatcher, and the distributed query logic tying them together.
type Node struct {
	env    *Env
	metric objects.Metric
	peers  []network.NodeId
	bucket *bucket.Bucket
	disp   *network.Dispatcher
	exec   *executor.Executor
}

func NewNode(env *Env) (*Node, error) {
	metric := objects.L2
	if env.NetCfg.Metric != "" {
		var err error
		metric, err = objects.ParseMetric(env.NetCfg.Metric)
		if err != nil {
			return nil, err
		}
	}

	if env.Stats == nil {
		env.Stats = stats.NewRegistry(stats.DefaultRegistrySize)
	}

	overlay, err := env.NetCfg.ParseOverlay()
	if err != nil {
		return nil, err
	}

	n := &Node{
		env:    env,
		metric: metric,
		peers:  overlay.Peers(env.NodeCfg.Id),
		bucket: bucket.New(metric, env.NodeCfg.Capacity, env.Log),
		exec:   executor.New(),
	}
	n.disp = network.NewDispatcher(env.NodeCfg.Id, env.bind(), codec.NewCodec(), env.resolve, n.handleRequest, env.Log)

	for name, h := range map[string]executor.Handler{
		OpPing:        n.opPing,
		OpSearchRange: n.opSearchRange,
		OpSearchKNN:   n.opSearchKNN,
		OpBucket:      n.opBucket,
	} {
		if err := n.exec.Register(name, h); err != nil {
			return nil, err
		}
	}
	n.exec.Seal()
	return n, nil
}

func (n *Node) Start() error {
	return n.disp.Start(n.env.Context)
}

func (n *Node) Stop() {
	n.disp.Close()
}

func (n *Node) Id() network.NodeId {
	return n.env.NodeCfg.Id
}

func (n *Node) Bucket() *bucket.Bucket {
	return n.bucket
}

func (n *Node) Dispatcher() *network.Dispatcher {
	return n.disp
}

func (n *Node) Stats() map[string]int64 {
	return n.env.Stats.Snapshot()
}

// handleRequest routes every inbound non-reply message through the operation
// registry by its wire discriminator.
func (n *Node) handleRequest(ctx context.Context, msg network.Message) {
	name, err := opName(msg)
	if err != nil {
		n.env.Log.Warn("unroutable message", "id", msg.ID(), "err", err)
		return
	}
	n.env.Stats.Add("op."+name, 1)
	if _, err := n.exec.Execute(ctx, name, msg); err != nil {
		n.env.Log.Warn("operation failed", "op", name, "id", msg.ID(), "err", err)
	}
}

func opName(msg network.Message) (string, error) {
	switch msg.(type) {
	case *message.Ping:
		return OpPing, nil
	case *message.RangeRequest:
		return OpSearchRange, nil
	case *message.KNNRequest:
		return OpSearchKNN, nil
	case *message.BucketRequest:
		return OpBucket, nil
	default:
		return "", fmt.Errorf("no operation for message type %T", msg)
	}
}

func (n *Node) opPing(ctx context.Context, arg any) (any, error) {
	req := arg.(*message.Ping)
	pong := &message.Pong{
		ReplyBase: network.NewReplyBase(req, network.NavigationElement{
			Sender:                 n.Id(),
			NotWaitingDestinations: []network.NodeId{n.Id()},
		}),
		Token: req.Token,
	}
	return nil, n.disp.Send(req.Origin(), pong)
}

func (n *Node) opBucket(ctx context.Context, arg any) (any, error) {
	req := arg.(*message.BucketRequest)
	reply := netbucket.HandleRequest(n.bucket, n.Id(), req)
	return nil, n.disp.Send(req.Origin(), reply)
}

// Ping checks a peer end to end through the dispatcher.
func (n *Node) Ping(ctx context.Context, peer network.NodeId, timeout time.Duration) error {
	req := &message.Ping{Base: network.NewBase(n.Id()), Token: uint64(time.Now().UnixNano())}
	receiver, err := network.SendWaitReply[*message.Pong](n.disp, req, peer)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	pong, err := receiver.GetFirstReply(ctx)
	if err != nil {
		return err
	}
	if pong.Token != req.Token {
		return fmt.Errorf("ping token mismatch")
	}
	return nil
}

// Insert stores an object on the given node ("" or self mean locally).
func (n *Node) Insert(ctx context.Context, target network.NodeId, o *objects.Object) error {
	n.env.Stats.Add("insert", 1)
	if target == "" || target == n.Id() {
		return n.bucket.AddObject(o)
	}
	return netbucket.NewRemoteBucket(n.disp, target, 10*time.Second).Add(ctx, o)
}

// GetObject fetches an object by locator from the given node.
func (n *Node) GetObject(ctx context.Context, target network.NodeId, locator string) (*objects.Object, error) {
	if target == "" || target == n.Id() {
		return n.bucket.GetObjectByLocator(locator)
	}
	return netbucket.NewRemoteBucket(n.disp, target, 10*time.Second).GetByLocator(ctx, locator)
}

// DeleteObject removes an object by locator on the given node.
func (n *Node) DeleteObject(ctx context.Context, target network.NodeId, locator string) error {
	if target == "" || target == n.Id() {
		return n.bucket.DeleteObjectByLocator(locator)
	}
	return netbucket.NewRemoteBucket(n.disp, target, 10*time.Second).DeleteByLocator(ctx, locator)
}
