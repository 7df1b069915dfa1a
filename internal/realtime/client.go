package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/foodgram/api/internal/auth"
	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (we validate via JWT)
	},
}

// Client represents a single WebSocket connection
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	rooms []string
	send  chan []byte
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// Clients only listen; reads exist to detect disconnects and answer pings.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("websocket closed", zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// OrderLookup loads an order to decide whether a socket may watch it.
type OrderLookup interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// RoomsFor returns the rooms a connection with claims joins. orderID is
// uuid.Nil when the client does not ask to watch an order.
func RoomsFor(ctx context.Context, orders OrderLookup, claims *auth.Claims, orderID uuid.UUID) ([]string, error) {
	rooms := []string{UserRoom(claims.UserID)}
	if enum.Role(claims.Role) == enum.RoleDelivery {
		rooms = append(rooms, PartnersRoom)
	}
	if orderID == uuid.Nil {
		return rooms, nil
	}

	o, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ref := lifecycle.OrderRef{
		Status:     enum.OrderStatus(o.Status),
		CustomerID: o.CustomerID,
	}
	if o.DeliveryPartnerID.Valid {
		ref.DeliveryPartnerID = o.DeliveryPartnerID.Bytes
	}
	if err := lifecycle.CanView(claims.Actor(), ref).Err(); err != nil {
		return nil, err
	}
	return append(rooms, OrderRoom(orderID)), nil
}

// ServeWS handles WebSocket requests from clients
// Endpoint: WS /ws?token=JWT[&order=<order id>]
func ServeWS(hub *Hub, orders OrderLookup, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	orderID := uuid.Nil
	if s := r.URL.Query().Get("order"); s != "" {
		orderID, err = uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}
	}

	rooms, err := RoomsFor(r.Context(), orders, claims, orderID)
	if err != nil {
		switch {
		case database.IsNotFound(err):
			http.Error(w, "order not found", http.StatusNotFound)
		case errors.Is(err, lifecycle.ErrForbidden):
			http.Error(w, "order access denied", http.StatusForbidden)
		default:
			zap.L().Error("websocket order lookup", zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{
		hub:   hub,
		conn:  conn,
		rooms: rooms,
		send:  make(chan []byte, 256),
	}
	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
