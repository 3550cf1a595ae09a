package ws

import (
	"encoding/json"
	"log"
	"sync"

	"readypath/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgLoadingProgress    MessageType = "loading_progress"
	MsgTurnAppended       MessageType = "turn_appended"
	MsgAssessmentComplete MessageType = "assessment_complete"
	MsgError              MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections per (user, kind) assessment page
type Hub struct {
	conns map[string]map[*Connection]bool

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *outbound
}

// Connection represents one open assessment page
type Connection struct {
	UserID string
	Kind   model.AssessmentKind
	Send   chan []byte
	Hub    *Hub
}

type outbound struct {
	key     string
	message *Message
}

// NewHub creates and starts a WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *outbound, 256),
	}
	go h.run()
	return h
}

func connKey(userID string, kind model.AssessmentKind) string {
	return userID + "|" + string(kind)
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			key := connKey(conn.UserID, conn.Kind)
			h.mu.Lock()
			if h.conns[key] == nil {
				h.conns[key] = make(map[*Connection]bool)
			}
			h.conns[key][conn] = true
			h.mu.Unlock()
			log.Printf("[WS] Connected: user=%s kind=%s", conn.UserID, conn.Kind)

		case conn := <-h.unregister:
			key := connKey(conn.UserID, conn.Kind)
			h.mu.Lock()
			if conns, ok := h.conns[key]; ok && conns[conn] {
				delete(conns, conn)
				close(conn.Send)
				if len(conns) == 0 {
					delete(h.conns, key)
				}
				log.Printf("[WS] Disconnected: user=%s kind=%s", conn.UserID, conn.Kind)
			}
			h.mu.Unlock()

		case out := <-h.broadcast:
			data, err := json.Marshal(out.message)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for conn := range h.conns[out.key] {
				select {
				case conn.Send <- data:
				default:
					// Slow consumer: drop the event, events are cosmetic
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) send(userID string, kind model.AssessmentKind, msgType MessageType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.broadcast <- &outbound{
		key:     connKey(userID, kind),
		message: &Message{Type: msgType, Payload: data},
	}
}

// BroadcastLoadingProgress implements service.Broadcaster
func (h *Hub) BroadcastLoadingProgress(userID string, kind model.AssessmentKind, percent int) {
	h.send(userID, kind, MsgLoadingProgress, map[string]int{"percent": percent})
}

// BroadcastTurn implements service.Broadcaster
func (h *Hub) BroadcastTurn(userID string, kind model.AssessmentKind, turn *model.Turn) {
	h.send(userID, kind, MsgTurnAppended, turn)
}

// BroadcastComplete implements service.Broadcaster
func (h *Hub) BroadcastComplete(userID string, kind model.AssessmentKind, overallScore float64) {
	h.send(userID, kind, MsgAssessmentComplete, map[string]float64{"overallScore": overallScore})
}
