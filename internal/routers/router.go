package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khadka27/assignmentghar-chat/config"
	"github.com/khadka27/assignmentghar-chat/internal/middleware"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
	"github.com/khadka27/assignmentghar-chat/state"
)

func NewRouter(state *state.AppState, hub *ws.Hub, wsHandler *ws.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)

	ChatRouter(r, state)
	HubRouter(r, hub, wsHandler)

	uploadsDir := http.Dir(config.Conf.UPLOADS.Dir)
	r.Handle(config.Conf.UPLOADS.BaseURL+"/*", http.StripPrefix(config.Conf.UPLOADS.BaseURL+"/", http.FileServer(uploadsDir)))

	return r
}
