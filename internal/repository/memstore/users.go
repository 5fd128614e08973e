package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// UserRepository пользователи в памяти.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return common.ErrAlreadyExists
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make([]models.User, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role string, verifiedOnly bool) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := []models.User{}
	for _, u := range r.s.users {
		if u.Role != role || (verifiedOnly && !u.IsVerified) {
			continue
		}
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}

func (r *UserRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u.IsVerified = verified
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return &u, nil
}

// NotificationRepository уведомления в памяти. Порядок вставки служит порядком created_at.
type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, n := range r.s.notifications {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []models.Notification{}
	skipped := 0
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, n)
	}
	return result, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id {
			r.s.notifications[i].IsRead = true
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.notifications {
		if r.s.notifications[i].UserID == userID {
			r.s.notifications[i].IsRead = true
		}
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
