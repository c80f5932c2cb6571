// Package message defines the concrete protocol messages exchanged between
// sift nodes. Every type embeds the network envelope; replies keep the
// conversation id of the request they answer.
package message

import (
	"github.com/google/uuid"

	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/objects"
)

// Ping checks that a peer's dispatcher is reachable and responding.
type Ping struct {
	network.Base
	Token uint64 `cbor:"token"`
}

type Pong struct {
	network.ReplyBase
	Token uint64 `cbor:"token"`
}

// RangeRequest asks for every object within Radius of Query.
type RangeRequest struct {
	network.Base
	Query  *objects.Object `cbor:"query"`
	Radius float32         `cbor:"radius"`
}

type RangeReply struct {
	network.ReplyBase
	Results []objects.RankedObject `cbor:"results,omitempty"`
}

// KNNRequest asks for the K objects nearest to Query.
type KNNRequest struct {
	network.Base
	Query *objects.Object `cbor:"query"`
	K     int             `cbor:"k"`
}

type KNNReply struct {
	network.ReplyBase
	Results []objects.RankedObject `cbor:"results,omitempty"`
}

// BucketOp selects the manipulation a BucketRequest performs.
type BucketOp uint8

const (
	BucketAdd BucketOp = iota + 1
	BucketAddMany
	BucketGet
	BucketGetLocator
	BucketDelete
	BucketDeleteLocator
)

// BucketRequest manipulates the remote node's bucket. Exactly the fields
// relevant to Op are set.
type BucketRequest struct {
	network.Base
	Op       BucketOp          `cbor:"op"`
	Object   *objects.Object   `cbor:"object,omitempty"`
	Objects  []*objects.Object `cbor:"objects,omitempty"`
	ObjectID uuid.UUID         `cbor:"objectId,omitempty"`
	Locator  string            `cbor:"locator,omitempty"`
}

type BucketReply struct {
	network.ReplyBase
	Object  *objects.Object   `cbor:"object,omitempty"`
	Objects []*objects.Object `cbor:"objects,omitempty"`
	Error   string            `cbor:"error,omitempty"`
}
