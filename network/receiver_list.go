package network

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ReceiverList tracks the live reply receivers of a dispatcher, keyed by the
// conversation id of the request they await. At most one receiver may be live
// per conversation.
type ReceiverList struct {
	mu        sync.Mutex
	receivers map[uuid.UUID]Receiver
}

func NewReceiverList() *ReceiverList {
	return &ReceiverList{receivers: make(map[uuid.UUID]Receiver)}
}

func (l *ReceiverList) register(id uuid.UUID, r Receiver) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.receivers[id]; ok {
		return fmt.Errorf("receiver already registered for request %s", id)
	}
	l.receivers[id] = r
	return nil
}

// Deregister removes the receiver for the given conversation. Removing an
// already-removed receiver is a no-op.
func (l *ReceiverList) Deregister(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receivers, id)
}

func (l *ReceiverList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.receivers)
}

// Accept offers an inbound reply to the receiver awaiting its conversation,
// in two passes: exact-type receivers first, then receivers that also take
// superclass messages. It reports whether any receiver consumed the message.
func (l *ReceiverList) Accept(msg Message) bool {
	l.mu.Lock()
	r, ok := l.receivers[msg.ID()]
	l.mu.Unlock()
	if !ok {
		return false
	}
	for _, allowSuperclass := range []bool{false, true} {
		if r.AcceptMessage(msg, allowSuperclass) {
			return true
		}
	}
	return false
}
