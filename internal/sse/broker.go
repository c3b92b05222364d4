// Package sse streams workspace changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/workspace"
)

// Events emitted by the broker itself rather than the store.
const (
	EventGraphUpdated    = "graph.updated"
	EventAssistCompleted = "assist.completed"
)

// keepAlive is how often an idle stream gets a comment line so proxies do
// not time it out.
const keepAlive = 30 * time.Second

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type changeData struct {
	PageID  string `json:"pageId,omitempty"`
	BlockID string `json:"blockId,omitempty"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the client set and the graph throttle
// state. Public methods talk to the loop over channels.
type Broker struct {
	graphMin time.Duration
	logger   *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan workspace.Event
	countReqCh    chan chan int

	dropped atomic.Int64

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits graph.updated at most once per
// graphThrottle.
func NewBroker(graphThrottle time.Duration, logger *slog.Logger) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		graphMin:      graphThrottle,
		logger:        logger,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan workspace.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastGraph  time.Time
		graphTimer *time.Timer
		graphDue   <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; skip rather than block the loop.
			}
		}
	}

	graphUpdated := func() {
		lastGraph = time.Now()
		broadcast(Event{Type: EventGraphUpdated, Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			if graphTimer != nil {
				graphTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.changeCh:
			broadcast(Event{Type: ev.Kind, Data: changeData{PageID: ev.PageID, BlockID: ev.BlockID}})
			if !ev.Structural() || graphDue != nil {
				continue
			}
			// Inside the throttle window the update is deferred, not lost.
			if wait := b.graphMin - time.Since(lastGraph); wait > 0 {
				graphTimer = time.NewTimer(wait)
				graphDue = graphTimer.C
				continue
			}
			graphUpdated()

		case <-graphDue:
			graphDue, graphTimer = nil, nil
			graphUpdated()

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
	if n := b.dropped.Load(); n > 0 {
		b.logger.Warn("sse: changes dropped under load", slog.Int64("count", n))
	}
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Observe forwards a store transition to clients. It never blocks: when
// the loop is saturated the change is dropped and counted. It matches
// workspace.Observer so the broker can subscribe to the store directly.
func (b *Broker) Observe(ev workspace.Event, _ *models.Workspace) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- ev:
	default:
		b.dropped.Add(1)
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
