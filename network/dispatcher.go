package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DedupTTL is how long the dispatcher remembers delivered replies so a
// re-sent duplicate cannot poison a receiver's uncommitted buffer.
var DedupTTL = 30 * time.Second

// dedupCapacity bounds the dedup cache. There is no janitor goroutine:
// expired entries read as absent and the capacity limit evicts the oldest,
// so the cache never needs background cleanup.
const dedupCapacity = 8192

// Codec translates between messages and their wire bytes. The concrete
// implementation lives in the codec package; the dispatcher only needs the
// round trip.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// Resolver maps a node id to its dialable endpoint.
type Resolver func(node NodeId) (string, error)

// RequestHandler is invoked for every inbound non-reply message.
type RequestHandler func(ctx context.Context, msg Message)

// Dispatcher owns the node's protocol transport: a TCP listener, outbound
// links to peers, and the registry of reply receivers. Every outstanding
// request gets exactly one receiver, created and seeded before the request
// leaves the node.
type Dispatcher struct {
	self    NodeId
	bind    string
	log     *slog.Logger
	codec   Codec
	resolve Resolver
	handler RequestHandler

	receivers *ReceiverList
	dedup     *ttlcache.Cache[string, struct{}]

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listener net.Listener

	mu      sync.Mutex
	links   map[NodeId]*link
	inbound map[net.Conn]struct{}
}

// link is one outbound TCP connection. Writes are serialized per link.
type link struct {
	conn  net.Conn
	mutex sync.Mutex
}

func (l *link) write(data []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return writeFrame(l.conn, data)
}

func NewDispatcher(self NodeId, bind string, codec Codec, resolve Resolver, handler RequestHandler, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		self:      self,
		bind:      bind,
		log:       log.With("node", self),
		codec:     codec,
		resolve:   resolve,
		handler:   handler,
		receivers: NewReceiverList(),
		dedup: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](DedupTTL),
			ttlcache.WithCapacity[string, struct{}](dedupCapacity),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

func (d *Dispatcher) Self() NodeId {
	return d.self
}

func (d *Dispatcher) Receivers() *ReceiverList {
	return d.receivers
}

// Addr returns the listen address, valid after Start. Useful when binding
// port zero.
func (d *Dispatcher) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)
	config := net.ListenConfig{}
	listener, err := config.Listen(d.ctx, "tcp", d.bind)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.bind, err)
	}
	d.listener = listener
	d.log.Info("listening on", "addr", listener.Addr())

	d.wg.Add(1)
	go d.acceptLoop()
	return nil
}

func (d *Dispatcher) acceptLoop() {
	defer d.wg.Done()
	for d.ctx.Err() == nil {
		conn, err := d.listener.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.log.Warn("failed to accept connection", "err", err)
			continue
		}
		d.track(conn)
		d.wg.Add(1)
		go d.readLoop(conn)
	}
}

// track remembers an inbound connection so Close can unblock its read loop.
func (d *Dispatcher) track(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inbound == nil {
		d.inbound = make(map[net.Conn]struct{})
	}
	d.inbound[conn] = struct{}{}
}

func (d *Dispatcher) untrack(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inbound, conn)
}

func (d *Dispatcher) readLoop(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()
	defer d.untrack(conn)
	for d.ctx.Err() == nil {
		data, err := readFrame(conn)
		if err != nil {
			return
		}
		msg, err := d.codec.Decode(data)
		if err != nil {
			d.log.Warn("dropping undecodable frame", "err", err)
			continue
		}
		d.deliver(msg)
	}
}

// deliver routes one inbound message: replies go through the receiver list,
// anything else to the request handler.
func (d *Dispatcher) deliver(msg Message) {
	if _, ok := msg.(ReplyMessage); ok {
		key := dedupKey(msg)
		if d.dedup.Has(key) {
			d.log.Debug("duplicate reply dropped", "id", msg.ID())
			return
		}
		d.dedup.Set(key, struct{}{}, ttlcache.DefaultTTL)
		if !d.receivers.Accept(msg) {
			d.log.Debug("reply matched no receiver", "id", msg.ID())
		}
		return
	}
	if d.handler == nil {
		d.log.Warn("no request handler registered", "id", msg.ID())
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handler(d.ctx, msg)
	}()
}

// dedupKey identifies one concrete reply transmission: the conversation plus
// the exact route it traveled.
func dedupKey(msg Message) string {
	key := msg.ID().String()
	for _, el := range msg.Route() {
		key += "|" + string(el.Sender)
		if el.Skipping {
			key += "*"
		}
	}
	return key
}

// Send transmits a message to dest, dialing a link if none is cached.
// Messages addressed to the local node are delivered in-process.
func (d *Dispatcher) Send(dest NodeId, msg Message) error {
	if dest == d.self {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(msg)
		}()
		return nil
	}

	data, err := d.codec.Encode(msg)
	if err != nil {
		return err
	}
	l, err := d.link(dest)
	if err != nil {
		return err
	}
	if err := l.write(data); err != nil {
		d.dropLink(dest, l)
		// one redial covers a peer that restarted between requests
		l, rerr := d.link(dest)
		if rerr != nil {
			return err
		}
		return l.write(data)
	}
	return nil
}

func (d *Dispatcher) link(dest NodeId) (*link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.links[dest]; ok {
		return l, nil
	}
	addr, err := d.resolve(dest)
	if err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(d.ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s (%s): %w", dest, addr, err)
	}
	l := &link{conn: conn}
	if d.links == nil {
		d.links = make(map[NodeId]*link)
	}
	d.links[dest] = l

	// replies to our own requests come back over this same connection
	d.wg.Add(1)
	go d.readLoop(conn)
	return l, nil
}

func (d *Dispatcher) dropLink(dest NodeId, l *link) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.links[dest]; ok && cur == l {
		delete(d.links, dest)
	}
	l.conn.Close()
}

func (d *Dispatcher) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.listener != nil {
		d.listener.Close()
	}
	d.mu.Lock()
	for _, l := range d.links {
		l.conn.Close()
	}
	d.links = nil
	for conn := range d.inbound {
		conn.Close()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// SendWaitReply registers a reply receiver for the request, seeds one waiting
// path per destination, and transmits. The returned receiver is the handle
// the caller blocks on; it deregisters itself once replies are retrieved.
func SendWaitReply[T ReplyMessage](d *Dispatcher, req Message, dests ...NodeId) (*ReplyReceiver[T], error) {
	r, err := NewReplyReceiver[T](req.ID(), d.receivers, d.log)
	if err != nil {
		return nil, err
	}
	for _, dest := range dests {
		r.AddWaitingPath(NewNavigationPath(dest))
	}
	for _, dest := range dests {
		if err := d.Send(dest, req); err != nil {
			d.receivers.Deregister(req.ID())
			return nil, err
		}
	}
	return r, nil
}
