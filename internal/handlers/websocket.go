package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	Principal models.Principal
	Conn      *websocket.Conn
	send      chan Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketHub fans committed events out to the connections of the
// principals they involve. Pause state changes go to everyone.
type WebSocketHub struct {
	clients    map[models.Principal]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.Event
	done       chan struct{}
	ledger     *services.Ledger
	log        *logrus.Logger
}

func NewWebSocketHub(ledger *services.Ledger, log *logrus.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[models.Principal]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.Event, 256),
		done:       make(chan struct{}),
		ledger:     ledger,
		log:        log,
	}
}

// SetLedger must be called before Run when the hub was built without one.
func (hub *WebSocketHub) SetLedger(ledger *services.Ledger) {
	hub.ledger = ledger
}

// Publish never blocks; events are dropped when the hub falls behind.
func (hub *WebSocketHub) Publish(event models.Event) {
	select {
	case hub.broadcast <- event:
	default:
		hub.log.WithField("event", event.Type).Warn("websocket hub full, event dropped")
	}
}

func (hub *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(hub.done)
			return

		case client := <-hub.register:
			set, ok := hub.clients[client.Principal]
			if !ok {
				set = make(map[*Client]struct{})
				hub.clients[client.Principal] = set
			}
			set[client] = struct{}{}
			hub.log.WithField("principal", client.Principal).Debug("websocket client registered")

		case client := <-hub.unregister:
			if set, ok := hub.clients[client.Principal]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(hub.clients, client.Principal)
					}
					hub.log.WithField("principal", client.Principal).Debug("websocket client unregistered")
				}
			}

		case event := <-hub.broadcast:
			hub.broadcastEvent(event)
		}
	}
}

func (hub *WebSocketHub) add(client *Client) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

// remove unregisters client and closes its send channel.
func (hub *WebSocketHub) remove(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
		close(client.send)
	}
}

func (hub *WebSocketHub) broadcastEvent(event models.Event) {
	msg := Message{Type: "EVENT", Data: event}

	if event.Type == models.EventPaused || event.Type == models.EventUnpaused {
		for _, set := range hub.clients {
			for client := range set {
				hub.deliver(client, msg)
			}
		}
		return
	}

	for principal, set := range hub.clients {
		if !event.Involves(principal) {
			continue
		}
		for client := range set {
			hub.deliver(client, msg)
		}
		if event.Type == models.EventTransfer {
			balance := hub.balanceMessage(principal)
			for client := range set {
				hub.deliver(client, balance)
			}
		}
	}
}

func (hub *WebSocketHub) deliver(client *Client, msg Message) {
	select {
	case client.send <- msg:
	default:
		hub.log.WithField("principal", client.Principal).Warn("websocket client slow, message dropped")
	}
}

func (hub *WebSocketHub) balanceMessage(principal models.Principal) Message {
	balance := hub.ledger.BalanceOf(principal)
	return Message{
		Type: "BALANCE_UPDATE",
		Data: models.BalanceResponse{
			Principal: principal,
			Balance:   balance.Dec(),
			Tokens:    models.FormatTokens(balance),
		},
	}
}

type WebSocketHandler struct {
	hub *WebSocketHub
	log *logrus.Logger
}

func NewWebSocketHandler(hub *WebSocketHub, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, log: log}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	principal := middleware.Principal(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade to websocket")
		return
	}

	client := &Client{
		Principal: principal,
		Conn:      conn,
		send:      make(chan Message, sendBuffer),
	}

	if !h.hub.add(client) {
		conn.Close()
		return
	}
	go h.writePump(client)
	defer h.hub.remove(client)

	h.hub.deliver(client, h.hub.balanceMessage(principal))

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).WithField("principal", principal).Warn("websocket error")
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.deliver(client, Message{
			Type: "PONG",
			Data: gin.H{
				"timestamp": time.Now().Unix(),
			},
		})
	case "BALANCE":
		h.hub.deliver(client, h.hub.balanceMessage(client.Principal))
	}
}

// writePump owns all writes to the connection.
func (h *WebSocketHandler) writePump(client *Client) {
	defer client.Conn.Close()

	for msg := range client.send {
		data, err := json.Marshal(msg)
		if err != nil {
			h.log.WithError(err).Error("failed to encode websocket message")
			continue
		}
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
