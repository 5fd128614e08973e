// Package events описывает события дел: темы realtime-канала, полезную нагрузку
// и поток аудита.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Виды realtime-сообщений.
const (
	KindCaseUpdate   = "caseUpdate"
	KindCaseFiled    = "caseFiled"
	KindNotification = "notification"
)

// AdminTopic тема для всех администраторов.
const AdminTopic = "admin"

const (
	userTopicPrefix = "user:"
	caseTopicPrefix = "case:"
)

func UserTopic(id uuid.UUID) string {
	return userTopicPrefix + id.String()
}

func CaseTopic(id uuid.UUID) string {
	return caseTopicPrefix + id.String()
}

// ParseCaseTopic извлекает идентификатор дела из темы вида case:{id}.
func ParseCaseTopic(topic string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(topic, caseTopicPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CasePayload поле data сообщений caseUpdate и caseFiled.
type CasePayload struct {
	CaseID  uuid.UUID `json:"caseId"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Version int64     `json:"version"`
}

// Publisher неблокирующая публикация в realtime-канал. Доставка не гарантируется.
type Publisher interface {
	Publish(topic, kind string, data any)
}

// NopPublisher используется, когда realtime-канал не подключён.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, any) {}

// AuditEvent запись потока аудита о переходе дела.
type AuditEvent struct {
	CaseID      uuid.UUID  `json:"case_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Version     int64      `json:"version"`
	Description string     `json:"description"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// AuditSink получатель потока аудита.
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent) error
	Close() error
}

// NopSink отбрасывает события, когда Kafka не настроена.
type NopSink struct{}

func (NopSink) Emit(context.Context, AuditEvent) error { return nil }
func (NopSink) Close() error                           { return nil }
