// Package realtime fans attempt events out to admins watching an exam over websockets.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lshigami/examdesk/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type Message struct {
	Type   string      `json:"type"`
	ExamID uint        `json:"exam_id"`
	Data   interface{} `json:"data"`
}

type client struct {
	id     string
	examID uint
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type Hub struct {
	mu    sync.RWMutex
	exams map[uint]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{exams: make(map[uint]map[*client]struct{})}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exams[c.examID] == nil {
		h.exams[c.examID] = make(map[*client]struct{})
	}
	h.exams[c.examID][c] = struct{}{}
	metrics.LiveConnections.Inc()
	log.Debug().Str("client", c.id).Uint("examID", c.examID).Int("watchers", len(h.exams[c.examID])).Msg("Live feed client connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.exams[c.examID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.exams, c.examID)
	}
	c.close()
	metrics.LiveConnections.Dec()
	log.Debug().Str("client", c.id).Uint("examID", c.examID).Msg("Live feed client disconnected")
}

// Watchers returns how many connections are subscribed to an exam.
func (h *Hub) Watchers(examID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exams[examID])
}

// Serve subscribes conn to examID and blocks until the peer goes away.
func (h *Hub) Serve(examID uint, conn *websocket.Conn) {
	c := &client{id: uuid.NewString(), examID: examID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)

	go c.writeLoop()

	defer func() {
		h.remove(c)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn().Err(err).Str("client", c.id).Msg("Live feed write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends an event to every watcher of examID. Slow clients whose buffer is full are dropped.
func (h *Hub) Publish(examID uint, eventType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: eventType, ExamID: examID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to encode live feed message")
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.exams[examID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("client", c.id).Uint("examID", examID).Msg("Dropping slow live feed client")
		h.remove(c)
	}
}
