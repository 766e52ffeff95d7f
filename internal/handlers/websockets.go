package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pivision/internal/hub"
	"pivision/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler upgrades a dashboard viewer to a websocket and registers it
// with the hub. The read loop only exists to notice disconnects; viewers
// never send meaningful data.
func LiveHandler(live *hub.Hub, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		live.Register(connection)
		defer live.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				break
			}
		}
	}
}
