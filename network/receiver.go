package network

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoReplies is returned by GetFirstReply when the receiver finished
// without committing a single reply.
var ErrNoReplies = errors.New("receiver finished with no replies")

// Receiver accepts inbound messages offered by the dispatcher. AcceptMessage
// reports whether the receiver consumed the message. Exact-type receivers only
// accept on the allowSuperclass=false pass, so the dispatcher can prefer them
// over catch-all receivers.
type Receiver interface {
	AcceptMessage(msg Message, allowSuperclass bool) bool
}

// ReplyReceiver tracks the set of navigation paths still expected to produce
// a reply for one outstanding request, and reconciles arriving replies against
// it. It is created by the dispatcher before the request is transmitted and is
// the sole owner of its waiting-path set.
//
// Replies may arrive concurrently from many connections; the whole
// reconciliation of one message runs under the receiver mutex. A reply whose
// own path is not (yet) waited on is buffered and retried whenever a later
// message expands the waiting set.
type ReplyReceiver[T ReplyMessage] struct {
	id   uuid.UUID
	list *ReceiverList
	log  *slog.Logger

	mu           sync.Mutex
	waitingPaths map[PathKey]NavigationPath
	messages     []T
	uncommitted  []T
	finished     bool
	done         chan struct{}

	deregister sync.Once
}

func newReplyReceiver[T ReplyMessage](id uuid.UUID, list *ReceiverList, log *slog.Logger) *ReplyReceiver[T] {
	return &ReplyReceiver[T]{
		id:           id,
		list:         list,
		log:          log,
		waitingPaths: make(map[PathKey]NavigationPath),
		done:         make(chan struct{}),
	}
}

// NewReplyReceiver creates a standalone receiver, registered in list when one
// is given. Normally receivers are created through Dispatcher.SendWaitReply;
// direct construction is for callers that drive AcceptMessage themselves.
func NewReplyReceiver[T ReplyMessage](id uuid.UUID, list *ReceiverList, log *slog.Logger) (*ReplyReceiver[T], error) {
	if log == nil {
		log = slog.Default()
	}
	r := newReplyReceiver[T](id, list, log)
	if list != nil {
		if err := list.register(id, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddWaitingPath seeds a leaf route that must produce a reply. It must only
// be called before the request is transmitted, never concurrently with
// message ingress.
func (r *ReplyReceiver[T]) AddWaitingPath(path NavigationPath) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waitingPaths[path.Key()] = path
}

// GetRemainingCount returns the number of replies still pending. It may
// overstate the true remaining work (fan-out collapses not yet processed) but
// is positive whenever the response is incomplete.
func (r *ReplyReceiver[T]) GetRemainingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waitingPaths)
}

// IsFinished reports whether every waited-on path has been resolved.
func (r *ReplyReceiver[T]) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// AcceptMessage offers an inbound message to this receiver. It returns false,
// without touching any state, when the dispatcher allows superclass receivers
// (this receiver always defers that pass), when the receiver already finished,
// or when the message is not the awaited reply type. Otherwise the message is
// accepted: either committed against the waiting-path set or buffered until a
// later fan-out expansion makes it resolvable.
func (r *ReplyReceiver[T]) AcceptMessage(msg Message, allowSuperclass bool) bool {
	if allowSuperclass {
		return false
	}
	reply, ok := msg.(T)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}

	var updates int
	if !r.updateWaitingPaths(reply, &updates) {
		r.uncommitted = append(r.uncommitted, reply)
	}

	// Any waiting-path expansion may have unlocked buffered messages; retry
	// them until a full pass makes no replacement. Each productive pass
	// shrinks the buffer or applies at least one replacement, so the loop
	// terminates.
	for updates > 0 {
		updates = 0
		kept := r.uncommitted[:0]
		for _, buffered := range r.uncommitted {
			if !r.updateWaitingPaths(buffered, &updates) {
				kept = append(kept, buffered)
			}
		}
		clear(r.uncommitted[len(kept):])
		r.uncommitted = kept
	}

	if len(r.waitingPaths) == 0 {
		r.finished = true
		close(r.done)
	}
	return true
}

// updateWaitingPaths walks the message route, applying every skipping hop's
// fan-out expansion and finally resolving the replier's own path. It reports
// whether the message committed; on false the caller must keep it buffered.
// Must be called with the receiver mutex held.
func (r *ReplyReceiver[T]) updateWaitingPaths(msg T, updates *int) bool {
	route := msg.Route()
	path := NavigationPath{}
	for i, el := range route {
		path = path.Append(el.Sender)
		if el.Skipping {
			r.replaceWaitingPaths(path, el.NotWaitingDestinations, updates)
		} else if i == len(route)-1 {
			if !r.resolveWaitingPaths(path, el.NotWaitingDestinations, updates) {
				return false
			}
		}
	}
	// A route that ends on a skipping element (or is empty) announces fan-out
	// only; it carries no reply to commit.
	if len(route) == 0 || route[len(route)-1].Skipping {
		return false
	}

	r.messages = append(r.messages, msg)
	return true
}

// replaceWaitingPaths swaps a waited-on path for one new path per fan-out
// destination. A miss is a normal no-op: the expansion may have been applied
// already by an earlier message, or the path may never have been waited on.
func (r *ReplyReceiver[T]) replaceWaitingPaths(path NavigationPath, destinations []NodeId, updates *int) bool {
	if !r.removeWaitingPath(path) {
		return false
	}
	for _, node := range destinations {
		next := path.Append(node)
		r.waitingPaths[next.Key()] = next
	}
	*updates += len(destinations)
	return true
}

// resolveWaitingPaths handles the final, non-skipping element of a reply
// route: the replier's own path must be waited on or the message stays
// uncommitted. Any other destinations listed were satisfied by this same
// reply and are resolved relative to the replier's parent hop.
func (r *ReplyReceiver[T]) resolveWaitingPaths(path NavigationPath, destinations []NodeId, updates *int) bool {
	if !r.removeWaitingPath(path) {
		return false
	}
	*updates++
	parent := path.Parent()
	sender := path.Last()
	for _, node := range destinations {
		if node == sender {
			continue
		}
		if r.removeWaitingPath(parent.Append(node)) {
			*updates++
		}
	}
	return true
}

func (r *ReplyReceiver[T]) removeWaitingPath(path NavigationPath) bool {
	key := path.Key()
	if _, ok := r.waitingPaths[key]; !ok {
		return false
	}
	delete(r.waitingPaths, key)
	return true
}

func (r *ReplyReceiver[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.messages))
	copy(out, r.messages)
	return out
}

// GetReplies blocks until the receiver finishes or timeout elapses (zero waits
// indefinitely), then returns every reply committed so far; on timeout the
// list may be incomplete, check IsFinished or GetRemainingCount. The receiver
// deregisters itself regardless of completion. Context cancellation is
// propagated to the caller.
func (r *ReplyReceiver[T]) GetReplies(ctx context.Context, timeout time.Duration) ([]T, error) {
	defer func() {
		if r.list != nil {
			r.deregister.Do(func() {
				r.list.Deregister(r.id)
			})
		}
	}()

	if timeout == 0 {
		select {
		case <-r.done:
		case <-ctx.Done():
			return r.snapshot(), ctx.Err()
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-r.done:
		case <-timer.C:
		case <-ctx.Done():
			return r.snapshot(), ctx.Err()
		}
	}
	return r.snapshot(), nil
}

// GetFirstReply waits until the response is complete and returns the first
// committed reply. A finished-but-empty response is retried once before
// giving up with ErrNoReplies.
func (r *ReplyReceiver[T]) GetFirstReply(ctx context.Context) (T, error) {
	var zero T
	for attempt := 0; attempt < 2; attempt++ {
		replies, err := r.GetReplies(ctx, 0)
		if err != nil {
			return zero, err
		}
		if len(replies) > 0 {
			return replies[0], nil
		}
		r.log.Warn("receiver finished without replies", "id", r.id)
	}
	return zero, ErrNoReplies
}
