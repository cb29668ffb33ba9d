package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/YannKr/deepguard/internal/session"
	"github.com/YannKr/deepguard/internal/sse"
	"github.com/YannKr/deepguard/internal/visitor"
)

func topicFor(visitorID string) string {
	return "visitor:" + visitorID
}

// Publisher forwards a controller's events to the visitor's SSE topic.
func Publisher(hub *sse.Hub, visitorID string) session.Listener {
	topic := topicFor(visitorID)
	return func(e session.Event) {
		data := e.Data
		if s, ok := data.(session.Snapshot); ok {
			data = publicSnapshot(s)
		}
		evt, err := sse.NewEvent(string(e.Type), data)
		if err != nil {
			slog.Error("encode session event", "session", visitorID, "error", err)
			return
		}
		hub.Publish(topic, evt)
	}
}

func (h *Handler) initialEvent(r *http.Request) (sse.Event, error) {
	return sse.NewEvent(string(session.EventState), publicSnapshot(h.visitorSnapshot(r)))
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := visitor.IDFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := h.SSE.Subscribe(topicFor(id))
	defer unsub()

	// Send initial keepalive and the current state
	fmt.Fprintf(w, ": connected\n\n")
	if evt, err := h.initialEvent(r); err == nil {
		evt.WriteTo(w)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			evt.WriteTo(w)
			flusher.Flush()
		}
	}
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsOutbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventsWS streams the same events as Events over a websocket. Inbound
// messages are ignored; reading only detects the peer going away.
func (h *Handler) EventsWS(w http.ResponseWriter, r *http.Request) {
	id := visitor.IDFromContext(r.Context())

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch, unsub := h.SSE.Subscribe(topicFor(id))
	defer unsub()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(evt sse.Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(wsOutbound{Type: evt.Type, Data: json.RawMessage(evt.Data)})
	}

	if evt, err := h.initialEvent(r); err == nil {
		if err := write(evt); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				slog.Debug("websocket write", "session", id, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
