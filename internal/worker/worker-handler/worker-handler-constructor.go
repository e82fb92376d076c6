package worker_handler

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/khadka27/assignmentghar-chat/internal/ws"
)

const JobBroadcastNewMessage = "broadcast_new_message"

type WorkerHandler struct {
	Ctx   context.Context
	Redis *redis.Client
	Hub   *ws.Hub
}

func NewWorkerHandler(ctx context.Context, redis *redis.Client, hub *ws.Hub) *WorkerHandler {
	return &WorkerHandler{
		Ctx:   ctx,
		Redis: redis,
		Hub:   hub,
	}
}
