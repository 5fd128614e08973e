package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/metrics"
)

const (
	relayQueueSize      = 1024
	relayPublishTimeout = 2 * time.Second
)

// relayEnvelope сообщение в канале Redis: тема и готовый JSON для клиентов.
type relayEnvelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay публикует события через Redis pub/sub, чтобы их получили клиенты всех экземпляров.
// Каждый экземпляр читает канал и раздаёт сообщения локальному хабу.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	queue   chan relayEnvelope
}

// NewRedisRelay создаёт ретранслятор поверх хаба.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		queue:   make(chan relayEnvelope, relayQueueSize),
	}
}

// Publish реализует events.Publisher. Не блокирует: при переполнении очереди событие теряется.
func (r *RedisRelay) Publish(topic, kind string, data any) {
	raw, err := json.Marshal(Message{Type: kind, Topic: topic, Data: data})
	if err != nil {
		logger.Component("realtime").WithError(err).Warn("не удалось сериализовать сообщение")
		return
	}

	select {
	case r.queue <- relayEnvelope{Topic: topic, Payload: raw}:
	default:
		metrics.RealtimeDroppedTotal.WithLabelValues("relay_queue_full").Inc()
	}
}

// Run запускает отправку и чтение канала до отмены контекста.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	incoming := sub.Channel()
	log := logger.Component("realtime").WithField("channel", r.channel)
	log.Info("подписка на канал Redis")

	for {
		select {
		case <-ctx.Done():
			return

		case env := <-r.queue:
			raw, err := json.Marshal(env)
			if err != nil {
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
			err = r.client.Publish(pubCtx, r.channel, raw).Err()
			cancel()
			if err != nil {
				metrics.RealtimeDroppedTotal.WithLabelValues("relay_publish").Inc()
				log.WithFields(logrus.Fields{
					"topic": env.Topic,
					"error": err,
				}).Warn("не удалось опубликовать событие в Redis")
				// Локальные клиенты получают событие и без Redis.
				r.hub.Deliver(env.Topic, env.Payload)
			}

		case msg, ok := <-incoming:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.WithError(err).Warn("некорректное сообщение в канале Redis")
				continue
			}
			r.hub.Deliver(env.Topic, env.Payload)
		}
	}
}
