package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type SSEHandler struct {
	bus       Subscriber
	snapshot  SnapshotFunc
	counter   ConnectionCounter
	logger    *zap.SugaredLogger
	heartbeat time.Duration
}

func NewSSEHandler(bus Subscriber, snapshot SnapshotFunc, logger *zap.SugaredLogger, counter ConnectionCounter) *SSEHandler {
	return &SSEHandler{
		bus:       bus,
		snapshot:  snapshot,
		counter:   counter,
		logger:    logger,
		heartbeat: 30 * time.Second,
	}
}

// HandleSSE streams "status" and "balances" events: the status snapshot first,
// then every published change, with periodic heartbeats.
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if h.counter != nil {
		h.counter.IncrementConnections(ctx)
		defer h.counter.DecrementConnections(context.Background())
	}

	sub := h.bus.Subscribe(ctx, streamChannels...)
	defer sub.Close()

	h.logger.Debugw("SSE connection established", "remote", r.RemoteAddr)
	h.sendEvent(w, flusher, "connected", "0", nil)
	if h.snapshot != nil {
		h.sendEvent(w, flusher, TopicStatus, "snapshot", h.snapshot(ctx))
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var seq int
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "ping", map[string]interface{}{
				"timestamp": time.Now().Unix(),
			})

		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			topic, known := channelTopics[msg.Channel]
			if !known {
				continue
			}
			seq++
			h.sendEvent(w, flusher, topic, fmt.Sprint(seq), json.RawMessage(msg.Payload))
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType, id string, data interface{}) {
	payload := []byte("{}")
	if data != nil {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
