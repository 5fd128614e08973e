package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// AgreementRepository соглашения, подписи и шаблоны в памяти.
type AgreementRepository struct {
	s *Store
}

func (r *AgreementRepository) Create(ctx context.Context, a *models.Agreement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.agreements {
		if existing.CaseID == a.CaseID {
			return common.ErrAgreementExists
		}
	}
	if a.Signatures == nil {
		a.Signatures = []models.AgreementSignature{}
	}
	r.s.agreements[a.ID] = *copyAgreement(*a)
	return nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.agreements[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyAgreement(a), nil
}

func (r *AgreementRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Agreement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agreements {
		if a.CaseID == caseID {
			return copyAgreement(a), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *AgreementRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (*models.Agreement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.agreements[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !a.Status.IsEditable() {
		return nil, common.ErrAgreementLocked
	}

	a.Content = content
	a.UpdatedAt = at
	r.s.agreements[id] = a
	return copyAgreement(a), nil
}

func (r *AgreementRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.AgreementStatus, at time.Time) (*models.Agreement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.agreements[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if a.Status != from {
		return nil, common.ErrStatusMismatch
	}

	a.Status = to
	a.UpdatedAt = at
	switch to {
	case valueobject.AgreementStatusSigned:
		a.SignedAt = &at
	case valueobject.AgreementStatusExecuted:
		a.ExecutedAt = &at
	}
	r.s.agreements[id] = a
	return copyAgreement(a), nil
}

func (r *AgreementRepository) Sign(ctx context.Context, sig *models.AgreementSignature, decide models.ConsensusFunc) (*models.SignOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.agreements[sig.AgreementID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !stored.Status.IsEditable() {
		return nil, common.ErrAgreementLocked
	}
	c, ok := r.s.cases[stored.CaseID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if stored.HasSigned(sig.UserID) {
		return nil, common.ErrAlreadySigned
	}

	// Изменения собираются на копии и записываются только после успешного решения.
	a := copyAgreement(stored)
	a.Signatures = append(a.Signatures, *sig)
	if a.Status == valueobject.AgreementStatusDraft {
		a.Status = valueobject.AgreementStatusPendingSignatures
	}
	a.UpdatedAt = sig.SignedAt

	caseCopy := c
	decision, err := decide(a, &caseCopy)
	if err != nil {
		return nil, err
	}

	out := &models.SignOutcome{Agreement: a, Signature: sig, Case: &caseCopy}
	if decision.Reached {
		signedAt := sig.SignedAt
		a.Status = valueobject.AgreementStatusSigned
		a.SignedAt = &signedAt
		out.Consensus = true

		if decision.Transition != nil {
			out.Case, out.Update, err = r.s.applyTransitionLocked(*decision.Transition)
			if err != nil {
				return nil, err
			}
		}
	}

	r.s.agreements[a.ID] = *copyAgreement(*a)
	return out, nil
}

func (r *AgreementRepository) CreateTemplate(ctx context.Context, t *models.AgreementTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.templates[t.ID] = *t
	return nil
}

func (r *AgreementRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.AgreementTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.templates[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &t, nil
}

func (r *AgreementRepository) ListTemplates(ctx context.Context, activeOnly bool) ([]models.AgreementTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	templates := make([]models.AgreementTemplate, 0, len(r.s.templates))
	for _, t := range r.s.templates {
		if activeOnly && !t.IsActive {
			continue
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].Name != templates[j].Name {
			return templates[i].Name < templates[j].Name
		}
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})
	return templates, nil
}
