package logger

import (
	"context"
	log "log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

func NewMongoMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			fields := []any{
				log.String("command", evt.CommandName),
				log.Duration("latency", evt.Duration),
				log.String("request_id", strconv.FormatInt(evt.RequestID, 10)),
			}

			if evt.Duration > 200*time.Millisecond {
				log.WarnContext(ctx, "MongoDB Slow", fields...)
			} else {
				log.InfoContext(ctx, "MongoDB Success", fields...)
			}
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			log.ErrorContext(ctx, "MongoDB Error",
				log.String("command", evt.CommandName),
				log.Duration("latency", evt.Duration),
				log.String("request_id", strconv.FormatInt(evt.RequestID, 10)),
				log.Any("err", evt.Failure),
			)
		},
	}
}
