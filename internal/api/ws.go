package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"salesdash/internal/engine"
	applog "salesdash/internal/log"
	"salesdash/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// A selection of every entity in a large dataset still fits.
	maxMessageSize = 64 * 1024

	sendBuffer = 16
)

const (
	msgSelect = "select"
	msgUpdate = "update"
	msgPing   = "ping"
	msgPong   = "pong"
	msgError  = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
}

type updateMessage struct {
	Type string `json:"type"`
	*models.DashboardData
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsClient is one live dashboard connection. readPump owns inbound frames and
// runs transforms; writePump owns all writes to the socket.
type wsClient struct {
	h      *Handler
	ds     *engine.Dataset
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *applog.Logger
}

// ServeWS upgrades to a websocket that answers select messages with dashboard updates.
func (h *Handler) ServeWS(c echo.Context) error {
	ds, err := h.loaded()
	if err != nil {
		return notReady(c)
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("Websocket upgrade failed", applog.FieldError, err)
		return nil
	}

	client := &wsClient{
		h:    h,
		ds:   ds,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		logger: applog.FromContext(c.Request().Context()).
			WithComponent(applog.ComponentWebsocket).
			With(applog.FieldRemoteAddr, conn.RemoteAddr().String()),
	}
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}
	client.logger.Info("Websocket connected")

	go client.writePump()
	client.readPump(c)
	return nil
}

func (cl *wsClient) readPump(c echo.Context) {
	defer func() {
		close(cl.send)
		cl.logger.Info("Websocket disconnected")
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.logger.Warn("Websocket read failed", applog.FieldError, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			cl.reply(errorMessage{Type: msgError, Error: "malformed message"})
			continue
		}

		switch msg.Type {
		case msgSelect:
			data := cl.h.dashboard(c.Request().Context(), cl.ds, engine.NewSelection(msg.Entities...))
			cl.reply(updateMessage{Type: msgUpdate, DashboardData: data})
		case msgPing:
			cl.reply(map[string]string{"type": msgPong})
		default:
			cl.logger.Debug("Unknown websocket message", applog.FieldMessageType, msg.Type)
			cl.reply(errorMessage{Type: msgError, Error: "unknown message type"})
		}
	}
}

// reply queues v for writePump. It gives up once the writer has exited.
func (cl *wsClient) reply(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		cl.logger.Error("Websocket encode failed", applog.FieldError, err)
		return
	}
	select {
	case cl.send <- b:
	case <-cl.done:
	}
}

func (cl *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(cl.done)
		cl.conn.Close()
	}()

	for {
		select {
		case message, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
