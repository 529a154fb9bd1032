// Package sse streams library changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

const (
	defaultThrottle  = 2 * time.Second
	defaultHeartbeat = 15 * time.Second
	defaultReplay    = 128

	clientBuffer = 64
	queueSize    = 256
)

// SummaryEvent is the throttled event carrying library counts.
const SummaryEvent = "library.updated"

// Event is one message for every connected client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Counts summarizes the library after a change.
type Counts struct {
	Books      int `json:"books"`
	Groups     int `json:"groups"`
	RecycleBin int `json:"recycleBin"`
	Quotes     int `json:"quotes"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithSummaryThrottle sets the minimum gap between library.updated events.
func WithSummaryThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.throttle = d
		}
	}
}

// WithHeartbeat sets how often idle streams get a keep-alive comment.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithReplay sets how many recent events are kept for clients that
// reconnect with Last-Event-ID.
func WithReplay(n int) Option {
	return func(b *Broker) { b.replay = max(n, 0) }
}

type changeReq struct {
	change library.Change
	counts Counts
}

type joinReq struct {
	out    chan []byte
	lastID uint64
}

// Broker fans events out to SSE clients. One goroutine owns the client set,
// the event sequence and the replay history; everything else talks to it
// over channels.
type Broker struct {
	throttle  time.Duration
	heartbeat time.Duration
	replay    int

	events  chan Event
	changes chan changeReq
	join    chan joinReq
	leave   chan chan []byte
	count   chan chan int

	dropped   atomic.Int64
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		throttle:  defaultThrottle,
		heartbeat: defaultHeartbeat,
		replay:    defaultReplay,
		events:    make(chan Event, queueSize),
		changes:   make(chan changeReq, queueSize),
		join:      make(chan joinReq),
		leave:     make(chan chan []byte),
		count:     make(chan chan int),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

type frame struct {
	id  uint64
	raw []byte
}

// hub is the state owned by the loop goroutine.
type hub struct {
	clients     map[chan []byte]struct{}
	seq         uint64
	history     []frame
	keep        int
	lastSummary time.Time
}

func encode(id uint64, typ string, payload []byte) []byte {
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, typ, payload)
}

func (h *hub) send(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	h.seq++
	f := frame{id: h.seq, raw: encode(h.seq, ev.Type, payload)}
	if h.keep > 0 {
		if len(h.history) == h.keep {
			h.history = append(h.history[:0], h.history[1:]...)
		}
		h.history = append(h.history, f)
	}
	for ch := range h.clients {
		select {
		case ch <- f.raw:
		default:
			// Slow client misses the event; it can resync on reconnect.
		}
	}
}

func (h *hub) add(req joinReq) {
	h.clients[req.out] = struct{}{}
	if req.lastID == 0 {
		return
	}
	for _, f := range h.history {
		if f.id <= req.lastID {
			continue
		}
		select {
		case req.out <- f.raw:
		default:
			return
		}
	}
}

func (h *hub) remove(ch chan []byte) {
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) summarize(c Counts) {
	h.lastSummary = time.Now()
	h.send(Event{Type: SummaryEvent, Data: c})
}

func (b *Broker) loop() {
	defer close(b.done)

	h := &hub{clients: make(map[chan []byte]struct{}), keep: b.replay}
	var (
		pending  *Counts
		trailing <-chan time.Time
	)

	for {
		select {
		case <-b.closing:
			for ch := range h.clients {
				close(ch)
			}
			return

		case req := <-b.join:
			h.add(req)

		case ch := <-b.leave:
			h.remove(ch)

		case ev := <-b.events:
			h.send(ev)

		case req := <-b.changes:
			h.send(Event{Type: req.change.Kind, Data: req.change})
			if since := time.Since(h.lastSummary); since >= b.throttle {
				h.summarize(req.counts)
				pending = nil
			} else {
				counts := req.counts
				pending = &counts
				if trailing == nil {
					trailing = time.After(b.throttle - since)
				}
			}

		case <-trailing:
			// The last change inside a throttle window still gets a summary.
			trailing = nil
			if pending != nil {
				h.summarize(*pending)
				pending = nil
			}

		case resp := <-b.count:
			resp <- len(h.clients)
		}
	}
}

func (b *Broker) closed() bool {
	select {
	case <-b.closing:
		return true
	default:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.closing) })
	<-b.done
}

// Subscribe registers a client for new events.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeFrom(0)
}

// SubscribeFrom registers a client and first replays the retained events
// with an id above lastID. A lastID of zero replays nothing.
func (b *Broker) SubscribeFrom(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed() {
		close(ch)
		return ch
	}
	select {
	case b.join <- joinReq{out: ch, lastID: lastID}:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish queues an event for all clients. It blocks only while the queue
// is full.
func (b *Broker) Publish(ev Event) {
	if b.closed() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

var _ library.Observer = (*Broker)(nil)

// LibraryChanged forwards the change and schedules a library.updated
// summary. The store calls it under its lock, so a full queue drops the
// change instead of waiting.
func (b *Broker) LibraryChanged(ch library.Change, snap models.Snapshot) {
	if b.closed() {
		return
	}
	req := changeReq{change: ch, counts: Counts{
		Books:      len(snap.Books),
		Groups:     len(snap.Groups),
		RecycleBin: len(snap.RecycleBin),
		Quotes:     len(snap.Quotes),
	}}
	select {
	case b.changes <- req:
	default:
		b.dropped.Add(1)
	}
}

// SettingsChanged broadcasts settings.updated.
func (b *Broker) SettingsChanged(s models.Settings) {
	if b.closed() {
		return
	}
	select {
	case b.events <- Event{Type: "settings.updated", Data: s}:
	default:
		b.dropped.Add(1)
	}
}

// Dropped counts observer events lost to a full queue.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// ServeHTTP streams events to one client (GET /api/events). A Last-Event-ID
// header resumes from the replay history.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var lastID uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeFrom(lastID)
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
