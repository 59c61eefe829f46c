// Package worker consumes video heartbeat events off JetStream, so
// clients that cannot reach the HTTP API directly (or batch offline)
// still feed the same reconciliation path.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/applearn/internal/idempotency"
	"github.com/example/applearn/internal/progress"
)

const (
	heartbeatSubject = "learning.video.progress"
	heartbeatDurable = "learning_video_progress"
)

// HeartbeatEvent is the payload published for a video heartbeat.
type HeartbeatEvent struct {
	EventID      string  `json:"event_id"`
	UserID       string  `json:"user_id"`
	VideoID      string  `json:"video_id"`
	SecondsDelta float64 `json:"seconds_delta"`
	Duration     float64 `json:"duration"`
	Position     float64 `json:"position"`
	SessionID    string  `json:"session_id"`
	Completed    bool    `json:"completed"`
}

type HeartbeatConsumer struct {
	Progress *progress.Service
	Dedup    idempotency.Store
	Logger   *zap.Logger
}

// Start pull-subscribes to the heartbeat subject and applies events until
// ctx is cancelled. A subscribe failure is returned; per-message failures
// are logged and the message is redelivered via Nak.
func (c *HeartbeatConsumer) Start(ctx context.Context, nc *nats.Conn) error {
	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	sub, err := js.PullSubscribe(heartbeatSubject, heartbeatDurable)
	if err != nil {
		return err
	}

	go c.loop(ctx, sub)
	return nil
}

func (c *HeartbeatConsumer) loop(ctx context.Context, sub *nats.Subscription) {
	batchSize := envInt("WORKER_BATCH_SIZE", 100)
	maxWait := time.Duration(envInt("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(batchSize, nats.MaxWait(maxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			c.Logger.Error("heartbeat fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			if err := c.handle(ctx, m.Data); err != nil {
				c.Logger.Error("heartbeat apply failed", zap.Error(err))
				if err := m.Nak(); err != nil {
					c.Logger.Error("heartbeat nak failed", zap.Error(err))
				}
				continue
			}
			if err := m.Ack(); err != nil {
				c.Logger.Error("heartbeat ack failed", zap.Error(err))
			}
		}
	}
}

func (c *HeartbeatConsumer) handle(ctx context.Context, data []byte) error {
	var ev HeartbeatEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// malformed payloads can never succeed on redelivery; log and drop
		c.Logger.Warn("heartbeat payload invalid", zap.Error(err))
		return nil
	}
	if strings.TrimSpace(ev.UserID) == "" {
		c.Logger.Warn("heartbeat missing user_id", zap.String("event_id", ev.EventID))
		return nil
	}

	if ev.EventID != "" {
		dup, err := c.Dedup.Check(ctx, ev.EventID)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	_, _, err := c.Progress.Record(ctx, ev.UserID, progress.Event{
		VideoID:      ev.VideoID,
		SecondsDelta: ev.SecondsDelta,
		Duration:     ev.Duration,
		Position:     ev.Position,
		SessionID:    ev.SessionID,
		Completed:    ev.Completed,
	})
	if errors.Is(err, progress.ErrMissingVideoID) {
		c.Logger.Warn("heartbeat missing video_id", zap.String("event_id", ev.EventID))
		return nil
	}
	if err != nil {
		// release the dedup mark so the Nak'ed redelivery is not
		// misclassified as a duplicate and dropped
		if ev.EventID != "" {
			if ferr := c.Dedup.Forget(ctx, ev.EventID); ferr != nil {
				c.Logger.Error("heartbeat dedup release failed",
					zap.String("event_id", ev.EventID), zap.Error(ferr))
			}
		}
		return err
	}
	return nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
