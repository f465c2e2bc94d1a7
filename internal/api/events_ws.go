package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// streamEvents upgrades to a websocket and forwards live attribution
// events until the client disconnects. Slow clients fall behind on the
// broker, which drops rather than blocking the engine.
func (a *App) streamEvents(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "websocket upgrade required"})
		return
	}

	up := websocket.Upgrader{
		// Local reporting surface; allow any origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := a.sess.Broker().Subscribe(a.sess.ID, 256)
	defer a.sess.Broker().Unsubscribe(a.sess.ID, ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Detect client disconnect; inbound frames are ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
