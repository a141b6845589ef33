package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Handle upgrades the request and registers the connection under userID.
// The caller must have authenticated the user already. allowedOrigins lists
// the origins browsers may connect from; empty means same-host only, "*"
// disables the check for gateway-fronted deployments.
func Handle(h *Hub, userID string, allowedOrigins []string, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowedOrigins, r)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(h, userID, conn)
	h.register(userID, c)
	go c.writePump()
	go c.readPump()
}

func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients; auth already happened upstream.
		return true
	}
	if len(allowed) == 0 {
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(parsed.Host, r.Host)
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "*" || strings.EqualFold(entry, origin) {
			return true
		}
	}
	return false
}
