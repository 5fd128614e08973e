package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// CaseRepository дела и их хронология в памяти.
type CaseRepository struct {
	s *Store
}

func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.cases[c.ID]; ok {
		return common.ErrAlreadyExists
	}
	r.s.cases[c.ID] = *c
	return nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cases[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &c, nil
}

func (r *CaseRepository) List(ctx context.Context, f models.CaseFilter) ([]models.Case, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]models.Case, 0, len(r.s.cases))
	for _, c := range r.s.cases {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.Type != nil && c.CaseType != *f.Type {
			continue
		}
		if f.PartyID != nil {
			isParty := c.PlaintiffID == *f.PartyID || (c.DefendantID != nil && *c.DefendantID == *f.PartyID)
			if !isParty {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.IssueDescription), search) &&
			!strings.Contains(strings.ToLower(c.OppositeParty.Name), search) {
			continue
		}
		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	return matched[start:end], total, nil
}

func (r *CaseRepository) ApplyTransition(ctx context.Context, tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.applyTransitionLocked(tr)
}

func (r *CaseRepository) ListUpdates(ctx context.Context, caseID uuid.UUID) ([]models.CaseUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return append([]models.CaseUpdate{}, r.s.updates[caseID]...), nil
}

// PanelRepository панели медиации в памяти.
type PanelRepository struct {
	s *Store
}

func (r *PanelRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) (*models.Panel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.panels[caseID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyPanel(p), nil
}

func (r *PanelRepository) CreateWithTransition(ctx context.Context, panel *models.Panel, tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.panels[panel.CaseID]; ok {
		return nil, nil, common.ErrPanelExists
	}

	updated, entry, err := r.s.applyTransitionLocked(tr)
	if err != nil {
		return nil, nil, err
	}

	r.s.panels[panel.CaseID] = *copyPanel(*panel)
	return updated, entry, nil
}
