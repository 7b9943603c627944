package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"frequency/logger"
	"frequency/middleware"
	"frequency/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20 // push-to-talk audio arrives base64 encoded
	sendBuffer     = 256
)

// envelope is the frame shape in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type WSHandler struct {
	services *session.Services
	registry *session.Registry
	upgrader websocket.Upgrader
	grace    time.Duration
	log      *logger.Logger
}

// NewWSHandler serves the radio protocol. A connection that sends no
// connect event within grace is bound to a fresh user.
func NewWSHandler(svc *session.Services, registry *session.Registry, origins []string, grace time.Duration, log *logger.Logger) *WSHandler {
	h := &WSHandler{
		services: svc,
		registry: registry,
		grace:    grace,
		log:      log.With("service", "WSHandler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	if middleware.AllowsAny(origins) {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan outbound, sendBuffer), done: make(chan struct{}), log: h.log}
	sess := session.New(h.services, cl)
	h.registry.Add(sess)
	h.log.Info("connection opened", "session_id", sess.ID(), "remote", c.ClientIP())

	go cl.writePump()
	var timer *time.Timer
	if h.grace > 0 {
		timer = time.AfterFunc(h.grace, sess.AutoConnect)
	}

	cl.readPump(sess)

	if timer != nil {
		timer.Stop()
	}
	h.registry.Remove(sess.ID())
	cl.close()
	h.log.Info("connection closed", "session_id", sess.ID(), "user_id", sess.UserID())
}

// client adapts one websocket to session.Emitter. Writes go through a
// single goroutine.
type client struct {
	conn      *websocket.Conn
	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
	log       *logger.Logger
}

func (c *client) Emit(event string, data any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- outbound{Event: event, Data: data}:
	case <-c.done:
	default:
		c.log.Warn("dropping event for slow client", "event", event)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) readPump(sess *session.Session) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "session_id", sess.ID(), "error", err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.Emit(session.EventError, &session.Error{Code: session.CodeBadPayload, Message: "Frames must be {event, data}"})
			continue
		}
		sess.Handle(env.Event, env.Data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
