package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// CaseRepository отвечает за таблицы cases и case_updates.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository создаёт экземпляр репозитория.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create сохраняет новое дело.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (
			id, case_type, issue_description, is_court_pending, case_number, fir_number,
			court_police_station, status, version, plaintiff_id, defendant_id,
			opposite_name, opposite_email, opposite_phone, opposite_address, created_at, updated_at
		) VALUES (
			:id, :case_type, :issue_description, :is_court_pending, :case_number, :fir_number,
			:court_police_station, :status, :version, :plaintiff_id, :defendant_id,
			:opposite_name, :opposite_email, :opposite_phone, :opposite_address, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("case repository: create %w", err)
	}
	return nil
}

// GetByID возвращает дело по идентификатору.
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	return common.GetByID[models.Case](ctx, r.db, "cases", id, common.ErrNotFound)
}

// List возвращает страницу дел по фильтру и общее количество.
func (r *CaseRepository) List(ctx context.Context, f models.CaseFilter) ([]models.Case, int, error) {
	baseWhere := func(sb *sqlbuilder.SelectBuilder) []string {
		var where []string
		if f.Status != nil {
			where = append(where, sb.Equal("status", string(*f.Status)))
		}
		if f.Type != nil {
			where = append(where, sb.Equal("case_type", string(*f.Type)))
		}
		if f.PartyID != nil {
			where = append(where, sb.Or(
				sb.Equal("plaintiff_id", *f.PartyID),
				sb.Equal("defendant_id", *f.PartyID),
			))
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			pattern := "%" + s + "%"
			where = append(where, sb.Or(
				sb.ILike("issue_description", pattern),
				sb.ILike("opposite_name", pattern),
			))
		}
		return where
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)").From("cases")
	if where := baseWhere(countSb); len(where) > 0 {
		countSb.Where(where...)
	}

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("case repository: count %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From("cases")
	if where := baseWhere(sb); len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("created_at DESC", "id")
	sb.Limit(f.Limit).Offset(f.Offset)

	query, args := sb.Build()
	cases := []models.Case{}
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, 0, fmt.Errorf("case repository: list %w", err)
	}

	return cases, total, nil
}

// ApplyTransition атомарно меняет статус дела и добавляет запись хронологии.
func (r *CaseRepository) ApplyTransition(ctx context.Context, tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	var (
		updated *models.Case
		entry   *models.CaseUpdate
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		updated, entry, err = applyTransitionTx(ctx, tx, tr)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, entry, nil
}

// ListUpdates возвращает хронологию дела в порядке добавления.
func (r *CaseRepository) ListUpdates(ctx context.Context, caseID uuid.UUID) ([]models.CaseUpdate, error) {
	updates := []models.CaseUpdate{}
	query := `SELECT * FROM case_updates WHERE case_id = $1 ORDER BY case_version`
	if err := r.db.SelectContext(ctx, &updates, query, caseID); err != nil {
		return nil, fmt.Errorf("case repository: list updates %w", err)
	}
	return updates, nil
}

// applyTransitionTx условное обновление дела внутри уже открытой транзакции.
// Используется также панелями и подписью соглашений.
func applyTransitionTx(ctx context.Context, tx *sqlx.Tx, tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	query := `
		UPDATE cases SET
			status = $1,
			version = version + 1,
			updated_at = $2,
			defendant_id = COALESCE($3, defendant_id),
			mediation_scheduled_at = COALESCE($4, mediation_scheduled_at),
			mediation_started_at = COALESCE($5, mediation_started_at),
			mediation_ended_at = COALESCE($6, mediation_ended_at),
			resolution = COALESCE($7, resolution)
		WHERE id = $8 AND status = $9 AND version = $10
		RETURNING *
	`

	var c models.Case
	err := tx.GetContext(ctx, &c, query,
		tr.To, tr.At, tr.DefendantID,
		tr.MediationScheduledAt, tr.MediationStartedAt, tr.MediationEndedAt, tr.Resolution,
		tr.CaseID, tr.From, tr.ExpectedVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, tr.CaseID); err != nil {
			return nil, nil, fmt.Errorf("case repository: check exists %w", err)
		}
		if !exists {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, common.ErrVersionConflict
	}
	if err != nil {
		return nil, nil, fmt.Errorf("case repository: apply transition %w", err)
	}

	entry := tr.Update()
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO case_updates (id, case_id, status, description, actor_id, case_version, created_at)
		VALUES (:id, :case_id, :status, :description, :actor_id, :case_version, :created_at)
	`, entry); err != nil {
		return nil, nil, fmt.Errorf("case repository: append update %w", err)
	}

	return &c, entry, nil
}
