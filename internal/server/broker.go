package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/tlogger"
)

const (
	MessageReload = "reload"
	MessageCSS    = "css"
)

// Message is sent as JSON to every live-reload client.
type Message struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Broker fans messages out to the connected live-reload clients.
type Broker struct {
	mu      sync.Mutex
	clients map[string]chan Message
	closed  bool
	metrics *metrics.Recorder
}

func newBroker(rec *metrics.Recorder) *Broker {
	return &Broker{clients: map[string]chan Message{}, metrics: rec}
}

// Subscribe registers a client. The channel is closed when the client is dropped or the
// broker shuts down.
func (b *Broker) Subscribe() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, 8)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.clients[id] = ch
	b.metrics.AddClients(1)
	return id, ch
}

func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Broker) removeLocked(id string) {
	if ch, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(ch)
		b.metrics.AddClients(-1)
	}
}

// Publish delivers msg to every client and returns how many received it. A client whose
// queue is full is dropped, its browser reconnects on its own.
func (b *Broker) Publish(msg Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}

	sent := 0
	for id, ch := range b.clients {
		select {
		case ch <- msg:
			sent++
		default:
			tlogger.Debug("msg", "dropping slow live-reload client", "client", id)
			b.removeLocked(id)
		}
	}
	b.metrics.IncBroadcast(msg.Type)
	tlogger.Debug("msg", "live-reload broadcast", "type", msg.Type, "path", msg.Path, "clients", sent)
	return sent
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close drops every client and ignores later publications.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id := range b.clients {
		b.removeLocked(id)
	}
}
