package worker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/khadka27/assignmentghar-chat/internal/queue"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
	worker_handler "github.com/khadka27/assignmentghar-chat/internal/worker/worker-handler"
)

func HandleJob(ctx context.Context, job queue.Job, redis *redis.Client, hub *ws.Hub) error {
	workerHandler := worker_handler.NewWorkerHandler(ctx, redis, hub)
	switch job.Type {
	case worker_handler.JobBroadcastNewMessage:
		return workerHandler.HandleBroadcastNewMessage(job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
