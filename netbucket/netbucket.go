// Package netbucket exposes a node's bucket over the protocol: a RemoteBucket
// client that manipulates another node's storage, and the server-side handler
// that executes manipulation requests against the local bucket.
package netbucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/encodeous/sift/bucket"
	"github.com/encodeous/sift/message"
	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
)

// RemoteBucket is a client for one peer's bucket. Every call is one
// request/reply conversation through the dispatcher.
type RemoteBucket struct {
	disp    *network.Dispatcher
	node    network.NodeId
	timeout time.Duration
}

func NewRemoteBucket(disp *network.Dispatcher, node network.NodeId, timeout time.Duration) *RemoteBucket {
	return &RemoteBucket{disp: disp, node: node, timeout: timeout}
}

func (rb *RemoteBucket) call(ctx context.Context, req *message.BucketRequest) (*message.BucketReply, error) {
	receiver, err := network.SendWaitReply[*message.BucketReply](rb.disp, req, rb.node)
	if err != nil {
		return nil, err
	}
	if rb.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rb.timeout)
		defer cancel()
	}
	reply, err := receiver.GetFirstReply(ctx)
	if err != nil {
		return nil, fmt.Errorf("bucket op %d on %s failed: %w", req.Op, rb.node, err)
	}
	if reply.Error != "" {
		return nil, remoteError(reply.Error)
	}
	return reply, nil
}

func (rb *RemoteBucket) request(op message.BucketOp) *message.BucketRequest {
	return &message.BucketRequest{Base: network.NewBase(rb.disp.Self()), Op: op}
}

func (rb *RemoteBucket) Add(ctx context.Context, o *objects.Object) error {
	req := rb.request(message.BucketAdd)
	req.Object = o
	_, err := rb.call(ctx, req)
	return err
}

func (rb *RemoteBucket) AddMany(ctx context.Context, objs []*objects.Object) error {
	req := rb.request(message.BucketAddMany)
	req.Objects = objs
	_, err := rb.call(ctx, req)
	return err
}

func (rb *RemoteBucket) Get(ctx context.Context, id uuid.UUID) (*objects.Object, error) {
	req := rb.request(message.BucketGet)
	req.ObjectID = id
	reply, err := rb.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return reply.Object, nil
}

func (rb *RemoteBucket) GetByLocator(ctx context.Context, locator string) (*objects.Object, error) {
	req := rb.request(message.BucketGetLocator)
	req.Locator = locator
	reply, err := rb.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return reply.Object, nil
}

func (rb *RemoteBucket) Delete(ctx context.Context, id uuid.UUID) error {
	req := rb.request(message.BucketDelete)
	req.ObjectID = id
	_, err := rb.call(ctx, req)
	return err
}

func (rb *RemoteBucket) DeleteByLocator(ctx context.Context, locator string) error {
	req := rb.request(message.BucketDeleteLocator)
	req.Locator = locator
	_, err := rb.call(ctx, req)
	return err
}

// remoteError maps the wire error string back onto the bucket sentinels so
// callers can test with errors.Is across the network boundary.
func remoteError(s string) error {
	for _, sentinel := range []error{bucket.ErrNotFound, bucket.ErrCapacity, bucket.ErrDuplicate} {
		if s == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(s)
}

// wireError reduces a bucket error to its sentinel string where one applies.
func wireError(err error) string {
	for _, sentinel := range []error{bucket.ErrNotFound, bucket.ErrCapacity, bucket.ErrDuplicate} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// HandleRequest executes a manipulation request against the local bucket and
// returns the reply to send back. The reply's terminal navigation element
// resolves the requester's waiting path for this node.
func HandleRequest(b *bucket.Bucket, self network.NodeId, req *message.BucketRequest) *message.BucketReply {
	reply := &message.BucketReply{
		ReplyBase: network.NewReplyBase(req, network.NavigationElement{
			Sender:                 self,
			NotWaitingDestinations: []network.NodeId{self},
		}),
	}
	if err := applyRequest(b, req, reply); err != nil {
		reply.Error = wireError(err)
	}
	return reply
}

func applyRequest(b *bucket.Bucket, req *message.BucketRequest, reply *message.BucketReply) error {
	switch req.Op {
	case message.BucketAdd:
		return b.AddObject(req.Object)
	case message.BucketAddMany:
		return b.AddObjects(req.Objects)
	case message.BucketGet:
		o, err := b.GetObject(req.ObjectID)
		reply.Object = o
		return err
	case message.BucketGetLocator:
		o, err := b.GetObjectByLocator(req.Locator)
		reply.Object = o
		return err
	case message.BucketDelete:
		return b.DeleteObject(req.ObjectID)
	case message.BucketDeleteLocator:
		return b.DeleteObjectByLocator(req.Locator)
	default:
		return fmt.Errorf("unknown bucket op %d", req.Op)
	}
}
