package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel API instances share events on.
const DefaultChannel = "foodgram:realtime"

// envelope is the wire form of a room event on the Redis channel.
type envelope struct {
	Room  string `json:"room"`
	Event Event  `json:"event"`
}

// RedisBridge fans events out through Redis pub/sub so that sockets held by
// any API instance receive them. Every instance, including the publisher,
// delivers to its local hub from the subscription.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisBridge(hub *Hub, client *redis.Client, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{hub: hub, client: client, channel: channel}
}

// Publish sends the event through Redis. If Redis is unreachable the event
// still reaches local sockets.
func (b *RedisBridge) Publish(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("marshal realtime payload", zap.String("event", event), zap.Error(err))
		return
	}
	msg, err := json.Marshal(envelope{Room: room, Event: Event{Type: event, Payload: raw}})
	if err != nil {
		zap.L().Warn("marshal realtime envelope", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, msg).Err(); err != nil {
		zap.L().Warn("redis publish failed, delivering locally", zap.String("room", room), zap.Error(err))
		b.hub.publishRaw(room, Event{Type: event, Payload: raw})
	}
}

// Run subscribes to the channel and forwards every message to the local hub
// until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBridge) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Room == "" {
		zap.L().Warn("discarding malformed realtime message", zap.Error(err))
		return
	}
	b.hub.publishRaw(env.Room, env.Event)
}
