package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
)

// UserService административные операции над пользователями.
type UserService struct {
	users    UserRepository
	notifier Notifier
	timeout  time.Duration
}

func NewUserService(users UserRepository, notifier Notifier, storeTimeout time.Duration) *UserService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &UserService{users: users, notifier: notifier, timeout: storeTimeout}
}

// VerifyUser меняет признак верификации и уведомляет пользователя.
func (s *UserService) VerifyUser(ctx context.Context, actor access.Principal, userID uuid.UUID, verified bool) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.SetVerified(ctx, userID, verified)
	if err != nil {
		return nil, storeError(err, apperror.ErrUserNotFound)
	}

	if s.notifier != nil {
		message := "Ваша учётная запись подтверждена. Теперь вы можете подавать дела."
		if !verified {
			message = "Подтверждение вашей учётной записи отозвано."
		}
		s.notifier.FanoutAsync(ctx, NotificationEvent{
			Type:       models.NotificationSystem,
			Title:      "Статус верификации",
			Message:    message,
			Recipients: []uuid.UUID{user.ID},
		})
	}
	return user, nil
}

// Me возвращает текущего пользователя.
func (s *UserService) Me(ctx context.Context, actor access.Principal) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, apperror.ErrUserNotFound)
	}
	return user, nil
}
