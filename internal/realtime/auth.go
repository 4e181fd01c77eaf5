package realtime

import (
	"net/http"
	"strings"

	"clipflow/pkg"

	"github.com/gorilla/websocket"
)

const devUserID = "dev-user"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// requestToken reads the JWT from the token query param, browsers cannot set headers on a
// websocket handshake. Other clients may send a bearer header instead.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// authenticate resolves the user of the handshake. In dev mode a request without any token is
// accepted as the dev user, like the API does.
func authenticate(cfg Config, r *http.Request) (string, bool) {
	token := requestToken(r)
	if token == "" {
		return devUserID, cfg.Mode == "dev"
	}
	claims, err := pkg.ValidateToken(token, cfg.JWTSecret)
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// ServeWS upgrades an authenticated request and registers the connection with the hub.
func ServeWS(hub *Hub, cfg Config, w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(cfg, r)
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := NewClient(hub, conn, userID)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
