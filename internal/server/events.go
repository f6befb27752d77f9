package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// taskEvent is the outgoing WebSocket message format for task updates.
type taskEvent struct {
	Type string        `json:"type"` // always "task_update"
	Task pipeline.Task `json:"task"`
}

// EventHub fans task stage changes out to websocket subscribers. It
// implements pipeline.Notifier; slow subscribers are disconnected rather
// than allowed to block the pipeline.
type EventHub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]chan taskEvent
	closed  bool
	writeWG sync.WaitGroup
}

// NewEventHub creates an event hub with no subscribers.
func NewEventHub() *EventHub {
	return &EventHub{conns: make(map[*websocket.Conn]chan taskEvent)}
}

// TaskUpdated broadcasts a task snapshot to every subscriber.
func (h *EventHub) TaskUpdated(task pipeline.Task) {
	event := taskEvent{Type: "task_update", Task: task}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop it.
			delete(h.conns, conn)
			close(ch)
			conn.Close()
		}
	}
}

// HandleWebSocket upgrades the connection and streams task updates until
// the client disconnects.
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}

	ch := make(chan taskEvent, 16)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = ch
	h.mu.Unlock()

	h.writeWG.Add(1)
	go func() {
		defer h.writeWG.Done()
		for event := range ch {
			if err := conn.WriteJSON(event); err != nil {
				h.remove(conn)
				return
			}
		}
	}()

	// Reads only drive disconnect detection; clients do not send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			h.remove(conn)
			return
		}
	}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// Close disconnects all subscribers and waits for their writers.
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	for conn, ch := range h.conns {
		delete(h.conns, conn)
		close(ch)
		conn.Close()
	}
	h.mu.Unlock()
	h.writeWG.Wait()
}
