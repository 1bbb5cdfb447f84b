package hub

import (
	"log"
	"sync"

	"github.com/orlenko/claude-log-tail/internal/model"
)

const subscriberBuffer = 1024

// Hub fans formatted display records out to all subscribers. The polling
// loop publishes; dashboard connections subscribe. Publishing never
// blocks: a subscriber whose buffer is full loses the record and the drop
// is counted.
type Hub struct {
	mu          sync.RWMutex
	subscribers []chan model.DisplayRecord
	dropped     int64
	closed      bool
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{}
}

// Subscribe returns a buffered channel that will receive every published
// record. The channel is closed when the hub shuts down.
func (h *Hub) Subscribe() <-chan model.DisplayRecord {
	ch := make(chan model.DisplayRecord, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Dropped returns the total number of records dropped for slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Publish sends a record to every subscriber without blocking.
func (h *Hub) Publish(rec model.DisplayRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for _, ch := range h.subscribers {
		select {
		case ch <- rec:
		default:
			h.dropped++
			log.Printf("hub: dropped record for slow consumer (total dropped: %d)", h.dropped)
		}
	}
}

// Close closes every subscriber channel. Further publishes are no-ops and
// further subscriptions receive an already-closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
