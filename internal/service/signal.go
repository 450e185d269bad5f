package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/docshield/docshield"
)

// SignalService fans change notifications out over redis pub/sub.
// One channel per watched scope (roles, role:<address>, requests,
// request:<address>, documents).
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

// Publish announces a committed mutation on its scope channel.
func (s *SignalService) Publish(ctx context.Context, channel string, event docshield.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime bridges a client connection to the pub/sub stream. Channel
// lists arriving on input replace the active subscription; decoded
// events flow to output until ctx ends or input closes. The redis
// subscription is released on return.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- docshield.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var subscribed []string

	for {
		select {
		case <-ctx.Done():
			return
		case channels, ok := <-input:
			if !ok {
				return
			}
			if len(subscribed) > 0 {
				if err := pubsub.Unsubscribe(ctx, subscribed...); err != nil {
					slog.Error(
						"failed to unsubscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
			if len(channels) > 0 {
				if err := pubsub.Subscribe(ctx, channels...); err != nil {
					slog.Error(
						"failed to subscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
					continue
				}
			}
			subscribed = channels
		case message, ok := <-messages:
			if !ok {
				return
			}
			var event docshield.Event
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
				slog.Error(
					"failed to decode event payload",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
