package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// AgreementRepository отвечает за соглашения, подписи и шаблоны.
type AgreementRepository struct {
	db *sqlx.DB
}

// NewAgreementRepository создаёт экземпляр репозитория.
func NewAgreementRepository(db *sqlx.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

// Create сохраняет черновик соглашения.
func (r *AgreementRepository) Create(ctx context.Context, a *models.Agreement) error {
	query := `
		INSERT INTO agreements (id, case_id, template_id, content, status, created_at, updated_at)
		VALUES (:id, :case_id, :template_id, :content, :status, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		if common.IsUniqueViolation(err, "agreements_case_id_key") {
			return common.ErrAgreementExists
		}
		return fmt.Errorf("agreement repository: create %w", err)
	}
	if a.Signatures == nil {
		a.Signatures = []models.AgreementSignature{}
	}
	return nil
}

// GetByID возвращает соглашение с подписями.
func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	a, err := common.GetByID[models.Agreement](ctx, r.db, "agreements", id, common.ErrNotFound)
	if err != nil {
		return nil, err
	}
	if a.Signatures, err = listSignatures(ctx, r.db, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByCaseID возвращает соглашение дела с подписями.
func (r *AgreementRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Agreement, error) {
	var a models.Agreement
	if err := r.db.GetContext(ctx, &a, `SELECT * FROM agreements WHERE case_id = $1`, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("agreement repository: get by case %w", err)
	}

	var err error
	if a.Signatures, err = listSignatures(ctx, r.db, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateContent меняет текст, пока соглашение в редактируемом статусе.
func (r *AgreementRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (*models.Agreement, error) {
	query := `
		UPDATE agreements SET content = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
		RETURNING *
	`

	var a models.Agreement
	err := r.db.GetContext(ctx, &a, query, content, at, id,
		valueobject.AgreementStatusDraft, valueobject.AgreementStatusPendingSignatures)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, common.ErrAgreementLocked
	}
	if err != nil {
		return nil, fmt.Errorf("agreement repository: update content %w", err)
	}

	if a.Signatures, err = listSignatures(ctx, r.db, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus переводит соглашение из from в to. Если статус уже другой, возвращает ErrStatusMismatch.
func (r *AgreementRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.AgreementStatus, at time.Time) (*models.Agreement, error) {
	query := `
		UPDATE agreements SET
			status = $1,
			updated_at = $2,
			signed_at = CASE WHEN $1 = 'SIGNED' THEN $2 ELSE signed_at END,
			executed_at = CASE WHEN $1 = 'EXECUTED' THEN $2 ELSE executed_at END
		WHERE id = $3 AND status = $4
		RETURNING *
	`

	var a models.Agreement
	err := r.db.GetContext(ctx, &a, query, string(to), at, id, string(from))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, common.ErrStatusMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("agreement repository: update status %w", err)
	}

	if a.Signatures, err = listSignatures(ctx, r.db, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Sign добавляет подпись и проверяет консенсус в одной транзакции.
// Строки соглашения и дела блокируются, поэтому две последние подписи
// не могут одновременно пропустить момент консенсуса.
func (r *AgreementRepository) Sign(ctx context.Context, sig *models.AgreementSignature, decide models.ConsensusFunc) (*models.SignOutcome, error) {
	var out *models.SignOutcome

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var a models.Agreement
		if err := tx.GetContext(ctx, &a, `SELECT * FROM agreements WHERE id = $1 FOR UPDATE`, sig.AgreementID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("agreement repository: lock agreement %w", err)
		}
		if !a.Status.IsEditable() {
			return common.ErrAgreementLocked
		}

		var c models.Case
		if err := tx.GetContext(ctx, &c, `SELECT * FROM cases WHERE id = $1 FOR UPDATE`, a.CaseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("agreement repository: lock case %w", err)
		}

		var inserted uuid.UUID
		err := tx.GetContext(ctx, &inserted, `
			INSERT INTO agreement_signatures (id, agreement_id, user_id, ip_address, user_agent, signed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (agreement_id, user_id) DO NOTHING
			RETURNING id
		`, sig.ID, sig.AgreementID, sig.UserID, sig.IPAddress, sig.UserAgent, sig.SignedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrAlreadySigned
		}
		if err != nil {
			return fmt.Errorf("agreement repository: insert signature %w", err)
		}

		if a.Status == valueobject.AgreementStatusDraft {
			a.Status = valueobject.AgreementStatusPendingSignatures
		}
		a.UpdatedAt = sig.SignedAt

		if a.Signatures, err = listSignatures(ctx, tx, a.ID); err != nil {
			return err
		}

		decision, err := decide(&a, &c)
		if err != nil {
			return err
		}

		out = &models.SignOutcome{Agreement: &a, Signature: sig, Case: &c}
		if decision.Reached {
			signedAt := sig.SignedAt
			a.Status = valueobject.AgreementStatusSigned
			a.SignedAt = &signedAt
			out.Consensus = true
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE agreements SET status = $1, signed_at = $2, updated_at = $3 WHERE id = $4`,
			string(a.Status), a.SignedAt, a.UpdatedAt, a.ID,
		); err != nil {
			return fmt.Errorf("agreement repository: update after sign %w", err)
		}

		if decision.Reached && decision.Transition != nil {
			out.Case, out.Update, err = applyTransitionTx(ctx, tx, *decision.Transition)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// CreateTemplate сохраняет шаблон соглашения.
func (r *AgreementRepository) CreateTemplate(ctx context.Context, t *models.AgreementTemplate) error {
	query := `
		INSERT INTO agreement_templates (id, name, description, category, content, is_active, created_at)
		VALUES (:id, :name, :description, :category, :content, :is_active, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("agreement repository: create template %w", err)
	}
	return nil
}

// GetTemplate возвращает шаблон по идентификатору.
func (r *AgreementRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.AgreementTemplate, error) {
	return common.GetByID[models.AgreementTemplate](ctx, r.db, "agreement_templates", id, common.ErrNotFound)
}

// ListTemplates возвращает шаблоны, по умолчанию только активные.
func (r *AgreementRepository) ListTemplates(ctx context.Context, activeOnly bool) ([]models.AgreementTemplate, error) {
	query := `SELECT * FROM agreement_templates`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name, created_at`

	templates := []models.AgreementTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("agreement repository: list templates %w", err)
	}
	return templates, nil
}

func listSignatures(ctx context.Context, q sqlx.QueryerContext, agreementID uuid.UUID) ([]models.AgreementSignature, error) {
	sigs := []models.AgreementSignature{}
	query := `SELECT * FROM agreement_signatures WHERE agreement_id = $1 ORDER BY signed_at, id`
	if err := sqlx.SelectContext(ctx, q, &sigs, query, agreementID); err != nil {
		return nil, fmt.Errorf("agreement repository: list signatures %w", err)
	}
	return sigs, nil
}
