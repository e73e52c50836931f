package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/voxhall/armory/internal/event"
)

// sseBroker fans bus events out to connected SSE clients. It is registered
// on the bus once; clients attach and detach as requests come and go.
type sseBroker struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan event.Event]struct{}
}

func newSSEBroker(logger *slog.Logger) *sseBroker {
	return &sseBroker{
		logger:  logger,
		clients: make(map[chan event.Event]struct{}),
	}
}

// handleEvent is an event.Handler. Slow clients are skipped, not waited on.
func (b *sseBroker) handleEvent(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *sseBroker) attach() chan event.Event {
	ch := make(chan event.Event, 32)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *sseBroker) detach(ch chan event.Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// handleEvents streams bus events to the client as server-sent events.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Tell the client it is connected before the first event arrives.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := r.broker.attach()
	defer r.broker.detach(ch)

	for {
		select {
		case <-req.Context().Done():
			return
		case e := <-ch:
			payload, err := json.Marshal(e)
			if err != nil {
				r.logger.Error("encoding sse event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload)
			flusher.Flush()
		}
	}
}
