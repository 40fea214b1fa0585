package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cal-sync/backend/internal/logging"
	ws "github.com/cal-sync/backend/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := ws.NewClient(hub)
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Logger.WithError(err).Debug("websocket read error")
			}
			break
		}

		handleClientMessage(message, client, hub)
	}
}

// handleClientMessage answers client commands. Only ping is understood.
func handleClientMessage(message []byte, client *ws.Client, hub *ws.Hub) {
	var cmd ws.ClientMessage
	var reply ws.Message
	if err := json.Unmarshal(message, &cmd); err != nil {
		reply = ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "bad_message", Message: "message is not JSON"})
	} else if cmd.Type == ws.TypePing {
		reply = ws.NewMessage(ws.TypePong, nil)
	} else {
		reply = ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_type",
			Message:      "unsupported message type",
			OriginalType: string(cmd.Type),
		})
	}

	data, err := reply.JSON()
	if err != nil {
		return
	}
	hub.SendTo(client, data)
}
