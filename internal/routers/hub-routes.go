package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/khadka27/assignmentghar-chat/internal/handlers"
	hub_handler "github.com/khadka27/assignmentghar-chat/internal/handlers/hub-handler"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
)

func HubRouter(r chi.Router, hub *ws.Hub, wsHandler *ws.Handler) {
	hubHandler := hub_handler.NewHubHandler(hub)

	// realtime channel
	r.Get("/ws", wsHandler.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", hubHandler.HandleHealth)
		r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetStats))

		r.Route("/rooms/{conversationId}", func(r chi.Router) {
			r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetRoomStats))
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/status", handlers.WrapHandler(hubHandler.HandleGetUserStatus))
		})
	})
}
