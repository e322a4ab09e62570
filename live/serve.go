package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"myhomeneeds/models"
	"myhomeneeds/orders"
	"myhomeneeds/store"
	"myhomeneeds/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Subscriber opens an order subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, q store.Query, fn func(orders.Update)) (store.Unsubscribe, error)
}

// QueryFunc builds the subscription query for a request. Its error is
// answered before the upgrade.
type QueryFunc func(*http.Request, models.Identity) (store.Query, error)

// IncomingQuery selects the caller's incoming orders as a cook. An optional
// status query parameter narrows it and must name a known status.
func IncomingQuery(r *http.Request, id models.Identity) (store.Query, error) {
	var status models.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := orders.ParseStatus(raw)
		if err != nil {
			return store.Query{}, err
		}
		status = st
	}
	return orders.CookQuery(id.UserID, status), nil
}

func MineQuery(_ *http.Request, id models.Identity) (store.Query, error) {
	return orders.CustomerQuery(id.UserID), nil
}

// Serve upgrades the request and streams the query's order updates until
// the socket closes. The subscription never outlives the connection.
func Serve(hub *Hub, subs Subscriber, query QueryFunc, logger *slog.Logger) httprouter.Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, err := utils.RequireIdentity(r)
		if err != nil {
			utils.RespondWithAppError(w, r, err)
			return
		}
		q, err := query(r, id)
		if err != nil {
			utils.RespondWithAppError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		client := &Client{
			Conn:   conn,
			Send:   make(chan []byte, 256),
			Room:   uuid.NewString(),
			UserID: id.UserID,
		}
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go writePump(client)

		ctx, cancel := context.WithCancel(context.Background())
		unsub, err := subs.Subscribe(ctx, q, func(u orders.Update) {
			if u.Kind == store.Failed {
				logger.Error("order subscription ended",
					slog.String("userId", id.UserID), slog.Any("error", u.Err))
				closeTryAgain(conn)
				conn.Close()
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				return
			}
			hub.Broadcast(client.Room, data)
		})
		if err != nil {
			cancel()
			logger.Error("order subscription failed",
				slog.String("userId", id.UserID), slog.String("error", err.Error()))
			closeTryAgain(conn)
			hub.Unregister(client)
			return
		}

		go readPump(client, hub, func() {
			unsub()
			cancel()
		})
	}
}

// closeTryAgain tells the peer the stream is gone and a reconnect may work.
func closeTryAgain(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription unavailable"),
		time.Now().Add(writeWait))
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the peer going away; clients send nothing.
func readPump(c *Client, hub *Hub, release func()) {
	defer func() {
		release()
		hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
