// Package push streams panel events to connected dashboard clients over
// Server-Sent Events. The broadcaster subscribes to the event bus and fans
// every event out to the open /events streams, so a browser tab sees state
// refreshes, notices and command acknowledgements without polling the panel.
package push

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/farmcare/ventpanel/internal/eventbus"
)

// clientBuffer bounds the per-client frame queue. A client that cannot keep
// up loses frames rather than stalling the bus workers.
const clientBuffer = 16

// Broadcaster fans bus events out to SSE clients. It implements http.Handler
// for the /events endpoint.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	log     zerolog.Logger
}

func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan []byte]struct{}),
		log:     logger,
	}
}

// Attach subscribes the broadcaster to every panel event type.
func (b *Broadcaster) Attach(bus *eventbus.Bus) {
	types := []eventbus.EventType{
		eventbus.EventTypeStateRefreshed,
		eventbus.EventTypeHistoryRefreshed,
		eventbus.EventTypeCommandSent,
		eventbus.EventTypeNotice,
		eventbus.EventTypeUpdateAvailable,
		eventbus.EventTypeTestMode,
	}
	for _, t := range types {
		bus.Subscribe(t, b.Broadcast)
	}
}

// Broadcast encodes one event as an SSE frame and queues it on every client.
func (b *Broadcaster) Broadcast(event eventbus.Event) {
	frame, err := encodeFrame(event)
	if err != nil {
		b.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode event frame")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
			b.log.Warn().Str("event_type", string(event.Type)).Msg("Slow event stream client, dropping frame")
		}
	}
}

// ClientCount reports how many streams are open.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP holds the connection open and writes frames until the client
// disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
	}()

	// Comment frame confirms the stream before the first event arrives.
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	b.log.Debug().Str("remote", r.RemoteAddr).Msg("Event stream client connected")

	for {
		select {
		case <-r.Context().Done():
			b.log.Debug().Str("remote", r.RemoteAddr).Msg("Event stream client disconnected")
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func encodeFrame(event eventbus.Event) ([]byte, error) {
	payload := event.Data
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(data)+len(event.Type)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, string(event.Type)...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
