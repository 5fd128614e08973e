package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/goroutine"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/metrics"
)

const defaultQueueSize = 256

// Message сообщение realtime-канала. Клиенты игнорируют неизвестные type.
type Message struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type delivery struct {
	topic   string
	payload []byte
}

// Hub управляет подписками клиентов на темы.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Client]struct{}
	broadcast chan delivery
	ctx       context.Context
}

// NewHub создаёт новый хаб. queueSize ограничивает очередь публикаций.
func NewHub(ctx context.Context, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		topics:    make(map[string]map[*Client]struct{}),
		broadcast: make(chan delivery, queueSize),
		ctx:       ctx,
	}
}

// Run раздаёт сообщения из очереди до отмены контекста.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case d := <-h.broadcast:
			h.send(d.topic, d.payload)
		}
	}
}

// Register подписывает клиента на его начальные темы.
func (h *Hub) Register(client *Client) {
	h.addClient(client)
}

// Unregister удаляет клиента из всех тем.
func (h *Hub) Unregister(client *Client) {
	h.removeClient(client)
}

// Subscribe добавляет клиента в тему.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !client.registered {
		return
	}
	h.join(client, topic)
}

// Unsubscribe убирает клиента из темы.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client, topic)
}

// Publish сериализует событие и ставит его в очередь. Никогда не блокирует вызывающего.
func (h *Hub) Publish(topic, kind string, data any) {
	raw, err := json.Marshal(Message{Type: kind, Topic: topic, Data: data})
	if err != nil {
		logger.Component("realtime").WithFields(logrus.Fields{
			"topic": topic,
			"kind":  kind,
			"error": err,
		}).Warn("не удалось сериализовать сообщение")
		return
	}
	h.Deliver(topic, raw)
}

// Deliver ставит готовое сообщение в очередь. При переполненной очереди сообщение отбрасывается.
func (h *Hub) Deliver(topic string, payload []byte) {
	select {
	case h.broadcast <- delivery{topic: topic, payload: payload}:
	default:
		metrics.RealtimeDroppedTotal.WithLabelValues("queue_full").Inc()
	}
}

// Subscribers число клиентов темы.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.registered {
		return
	}
	client.registered = true
	for _, topic := range client.initial {
		h.join(client, topic)
	}
	metrics.RealtimeClients.Inc()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !client.registered {
		return
	}
	client.registered = false
	for topic := range client.topics {
		h.leave(client, topic)
	}
	metrics.RealtimeClients.Dec()
}

// join и leave вызываются под h.mu.
func (h *Hub) join(client *Client, topic string) {
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][client] = struct{}{}
	client.topics[topic] = struct{}{}
}

func (h *Hub) leave(client *Client, topic string) {
	delete(client.topics, topic)
	if clients, ok := h.topics[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) send(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент отключается, чтобы не задерживать остальных.
			metrics.RealtimeDroppedTotal.WithLabelValues("slow_client").Inc()
			goroutine.SafeGo(client.Close)
		}
	}
}
