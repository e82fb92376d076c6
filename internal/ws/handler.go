package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type AuthenticatorFunc func(r *http.Request) (userID string, err error)

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: limit your cors, don't get true so easy in production
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	Hub           *Hub
	authenticator AuthenticatorFunc
}

func NewHandler(hub *Hub, authenticator AuthenticatorFunc) *Handler {
	return &Handler{
		Hub:           hub,
		authenticator: authenticator,
	}
}

// QueryAuthenticator takes the user_id claim at face value. It is NOT
// verified against the session mechanism the REST API uses; hardening this
// is a prerequisite for production deployments.
func QueryAuthenticator(r *http.Request) (string, error) {
	return r.URL.Query().Get("user_id"), nil
}

// HandleWS upgrades the connection, attaches the handshake identity and
// registers the client. An empty identity yields an unauthenticated
// read-only connection that never enters the presence registry.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	auth := h.authenticator
	if auth == nil {
		auth = QueryAuthenticator
	}

	userID, err := auth(r)
	if err != nil {
		log.Warn().Err(err).Msg("ws: handshake auth rejected")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	client := newClient(h.Hub, conn, userID)
	h.Hub.Register(client)
	client.Start()
}
