// Package codec implements the wire codec: a one-byte message code followed
// by the CBOR encoding of the message struct. The code registry is a static
// switch in both directions, so an unknown or mismatched type is always a
// decode/encode error rather than a silent coercion.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/encodeous/sift/message"
	"github.com/encodeous/sift/network"
)

const (
	codeMin uint8 = iota + 1

	codePing
	codePong

	codeRangeRequest
	codeRangeReply
	codeKNNRequest
	codeKNNReply

	codeBucketRequest
	codeBucketReply

	codeMax
)

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

var _ network.Codec = (*Codec)(nil)

func messageCode(msg network.Message) (uint8, error) {
	switch msg.(type) {
	case *message.Ping:
		return codePing, nil
	case *message.Pong:
		return codePong, nil
	case *message.RangeRequest:
		return codeRangeRequest, nil
	case *message.RangeReply:
		return codeRangeReply, nil
	case *message.KNNRequest:
		return codeKNNRequest, nil
	case *message.KNNReply:
		return codeKNNReply, nil
	case *message.BucketRequest:
		return codeBucketRequest, nil
	case *message.BucketReply:
		return codeBucketReply, nil
	default:
		return 0, fmt.Errorf("invalid encode type (%T)", msg)
	}
}

func messageFromCode(code uint8) (network.Message, error) {
	switch code {
	case codePing:
		return &message.Ping{}, nil
	case codePong:
		return &message.Pong{}, nil
	case codeRangeRequest:
		return &message.RangeRequest{}, nil
	case codeRangeReply:
		return &message.RangeReply{}, nil
	case codeKNNRequest:
		return &message.KNNRequest{}, nil
	case codeKNNReply:
		return &message.KNNReply{}, nil
	case codeBucketRequest:
		return &message.BucketRequest{}, nil
	case codeBucketReply:
		return &message.BucketReply{}, nil
	default:
		return nil, fmt.Errorf("unknown message code %d", code)
	}
}

func (c *Codec) Encode(msg network.Message) ([]byte, error) {
	code, err := messageCode(msg)
	if err != nil {
		return nil, err
	}
	body, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", msg, err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, code)
	out = append(out, body...)
	return out, nil
}

func (c *Codec) Decode(data []byte) (network.Message, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("frame too short (%d bytes)", len(data))
	}
	msg, err := messageFromCode(data[0])
	if err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(data[1:], msg); err != nil {
		return nil, fmt.Errorf("could not decode message code %d: %w", data[0], err)
	}
	return msg, nil
}
