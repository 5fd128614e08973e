package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/danmainah/resolveit-app/internal/events"
	"github.com/danmainah/resolveit-app/internal/goroutine"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/metrics"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

const (
	defaultFanoutConcurrency = 8
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationEvent одно уведомление для набора получателей.
type NotificationEvent struct {
	Type       models.NotificationType
	Title      string
	Message    string
	CaseID     *uuid.UUID
	Recipients []uuid.UUID
}

// FanoutResult итог рассылки.
type FanoutResult struct {
	Delivered int
	Failed    int
}

// Notifier асинхронная рассылка уведомлений, которую используют остальные сервисы.
type Notifier interface {
	FanoutAsync(ctx context.Context, ev NotificationEvent)
}

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo        NotificationRepository
	publisher   events.Publisher
	concurrency int
	timeout     time.Duration
	tracker     goroutine.Tracker
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository, publisher events.Publisher, concurrency int, storeTimeout time.Duration) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &NotificationService{
		repo:        repo,
		publisher:   publisher,
		concurrency: concurrency,
		timeout:     storeTimeout,
	}
}

// Fanout записывает уведомление каждому получателю независимо от остальных.
// Ошибка записи для одного получателя логируется и не прерывает рассылку.
func (s *NotificationService) Fanout(ctx context.Context, ev NotificationEvent) FanoutResult {
	recipients := uniqueIDs(ev.Recipients)
	if len(recipients) == 0 {
		return FanoutResult{}
	}

	var delivered, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, userID := range recipients {
		g.Go(func() error {
			n := &models.Notification{
				UserID:  userID,
				Type:    ev.Type,
				Title:   ev.Title,
				Message: ev.Message,
				CaseID:  ev.CaseID,
			}

			writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := s.repo.Create(writeCtx, n); err != nil {
				failed.Add(1)
				metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				logger.Component("fanout").WithFields(logrus.Fields{
					"user_id": userID,
					"type":    ev.Type,
					"error":   err,
				}).Warn("не удалось сохранить уведомление")
				return nil
			}

			delivered.Add(1)
			metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
			s.publisher.Publish(events.UserTopic(userID), events.KindNotification, n)
			return nil
		})
	}
	_ = g.Wait()

	return FanoutResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
}

// FanoutAsync запускает рассылку в фоне, не привязываясь к отмене запроса.
func (s *NotificationService) FanoutAsync(ctx context.Context, ev NotificationEvent) {
	detached := context.WithoutCancel(ctx)
	s.tracker.Go(func() {
		s.Fanout(detached, ev)
	})
}

// Wait ждёт завершения фоновых рассылок.
func (s *NotificationService) Wait() {
	s.tracker.Wait()
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return list, nil
}

// MarkAsRead отмечает уведомление как прочитанное. Только владелец.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeError(err, apperror.ErrNotificationNotFound)
	}

	if notification.UserID != userID {
		return apperror.New(apperror.ErrCodeAccessDenied, "у вас нет прав на это уведомление")
	}

	return storeError(s.repo.MarkAsRead(ctx, id), apperror.ErrNotificationNotFound)
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return storeError(s.repo.MarkAllAsRead(ctx, userID), nil)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, storeError(err, nil)
	}
	return count, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
