package network

import "github.com/google/uuid"

// Message is the envelope shared by every sift protocol message. The message
// id identifies a conversation: replies keep the id of the request they answer.
type Message interface {
	ID() uuid.UUID
	Origin() NodeId
	Route() []NavigationElement
}

// ReplyMessage marks messages that answer an outstanding request and are
// eligible for reply aggregation. Implemented by embedding ReplyBase.
type ReplyMessage interface {
	Message
	replyMessage()
}

// Base carries the envelope fields for request messages. Embed it and call
// NewBase from the originator.
type Base struct {
	MsgID    uuid.UUID           `cbor:"id"`
	Src      NodeId              `cbor:"origin"`
	Elements []NavigationElement `cbor:"route,omitempty"`
}

func NewBase(origin NodeId) Base {
	return Base{MsgID: uuid.New(), Src: origin}
}

func (b *Base) ID() uuid.UUID {
	return b.MsgID
}

func (b *Base) Origin() NodeId {
	return b.Src
}

func (b *Base) Route() []NavigationElement {
	return b.Elements
}

// Forwarded returns a copy of the route with one more element, for building
// the envelope of a forwarded or reply message. The receiver is unmodified.
func (b *Base) Forwarded(el NavigationElement) []NavigationElement {
	out := make([]NavigationElement, len(b.Elements)+1)
	copy(out, b.Elements)
	out[len(b.Elements)] = el
	return out
}

// ReplyBase is the envelope for reply messages. Build it from the request
// being answered so the conversation id is preserved.
type ReplyBase struct {
	Base
}

func (ReplyBase) replyMessage() {}

// NewReplyBase derives a reply envelope from a request: same conversation id,
// route extended by the given elements.
func NewReplyBase(req Message, elements ...NavigationElement) ReplyBase {
	route := make([]NavigationElement, 0, len(req.Route())+len(elements))
	route = append(route, req.Route()...)
	route = append(route, elements...)
	return ReplyBase{Base{MsgID: req.ID(), Src: req.Origin(), Elements: route}}
}
