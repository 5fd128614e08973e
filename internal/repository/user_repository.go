package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// UserRepository отвечает за работу с таблицей users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (name, email, phone, password_hash, role, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.Name, user.Email, user.Phone, user.PasswordHash, user.Role, user.IsVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "users_email_key") {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, common.ErrNotFound)
}

// GetByIDs возвращает найденных пользователей. Отсутствующие идентификаторы пропускаются.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("user repository: build in query %w", err)
	}

	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("user repository: get by ids %w", err)
	}

	return users, nil
}

// ListByRole возвращает пользователей роли, при verifiedOnly только подтверждённых.
func (r *UserRepository) ListByRole(ctx context.Context, role string, verifiedOnly bool) ([]models.User, error) {
	query := `SELECT * FROM users WHERE role = $1`
	if verifiedOnly {
		query += ` AND is_verified = TRUE`
	}
	query += ` ORDER BY name, id`

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("user repository: list by role %w", err)
	}

	return users, nil
}

// SetVerified меняет признак верификации.
func (r *UserRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.User, error) {
	var user models.User
	query := `UPDATE users SET is_verified = $1, updated_at = $2 WHERE id = $3 RETURNING *`
	if err := r.db.GetContext(ctx, &user, query, verified, time.Now().UTC(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("user repository: set verified %w", err)
	}

	return &user, nil
}
