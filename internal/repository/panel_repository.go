package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// PanelRepository отвечает за таблицы panels и panel_members.
type PanelRepository struct {
	db *sqlx.DB
}

// NewPanelRepository создаёт экземпляр репозитория.
func NewPanelRepository(db *sqlx.DB) *PanelRepository {
	return &PanelRepository{db: db}
}

// GetByCaseID возвращает панель дела вместе с участниками.
func (r *PanelRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Panel, error) {
	var panel models.Panel
	if err := r.db.GetContext(ctx, &panel, `SELECT * FROM panels WHERE case_id = $1`, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("panel repository: get by case %w", err)
	}

	panel.Members = []models.PanelMember{}
	query := `SELECT * FROM panel_members WHERE panel_id = $1 ORDER BY role, user_id`
	if err := r.db.SelectContext(ctx, &panel.Members, query, panel.ID); err != nil {
		return nil, fmt.Errorf("panel repository: list members %w", err)
	}

	return &panel, nil
}

// CreateWithTransition сохраняет панель, всех участников и переход дела в одной транзакции.
// Панель вставляется до обновления статуса, поэтому конкурентный вызов получает ErrPanelExists.
func (r *PanelRepository) CreateWithTransition(ctx context.Context, panel *models.Panel, tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	var (
		updated *models.Case
		entry   *models.CaseUpdate
	)

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO panels (id, case_id, created_at) VALUES ($1, $2, $3)`,
			panel.ID, panel.CaseID, panel.CreatedAt,
		)
		if err != nil {
			if common.IsUniqueViolation(err, "panels_case_id_key") {
				return common.ErrPanelExists
			}
			return fmt.Errorf("panel repository: create %w", err)
		}

		inserter := common.NewBatchInserter(tx, `INSERT INTO panel_members (id, panel_id, user_id, role)`, 4, 50)
		for _, m := range panel.Members {
			if err := inserter.Add(ctx, m.ID, panel.ID, m.UserID, m.Role); err != nil {
				return fmt.Errorf("panel repository: add member %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("panel repository: add members %w", err)
		}

		updated, entry, err = applyTransitionTx(ctx, tx, tr)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return updated, entry, nil
}
