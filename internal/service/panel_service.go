package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
	"github.com/danmainah/resolveit-app/internal/validation"
)

// PanelMemberInput участник панели и его роль.
type PanelMemberInput struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required,panel_role"`
}

// FormPanelInput состав панели.
type FormPanelInput struct {
	Members []PanelMemberInput `json:"members" validate:"dive"`
}

// PanelService формирует панели медиаторов.
type PanelService struct {
	sm     *CaseStateMachine
	panels PanelRepository
	users  UserRepository
}

// NewPanelService создаёт сервис панелей. Запись панели идёт через блокировку
// и рассылку машины состояний.
func NewPanelService(sm *CaseStateMachine, panels PanelRepository, users UserRepository) *PanelService {
	return &PanelService{sm: sm, panels: panels, users: users}
}

// FormPanel формирует панель для принятого дела и переводит его в PANEL_CREATED.
// Панель, участники, статус и запись хронологии фиксируются одной транзакцией.
func (s *PanelService) FormPanel(ctx context.Context, actor access.Principal, caseID uuid.UUID, in FormPanelInput) (*models.Panel, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	unlock := s.sm.locks.Lock(caseID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		c, err := s.sm.cases.GetByID(ctx, caseID)
		if err != nil {
			return nil, storeError(err, apperror.ErrCaseNotFound)
		}

		if err := s.checkPanel(ctx, c, in.Members); err != nil {
			return nil, err
		}

		panel := buildPanel(caseID, in.Members)
		tr, err := s.sm.newTransition(c, valueobject.CaseStatusPanelCreated, panelDescription(panel), actor)
		if err != nil {
			return nil, err
		}
		panel.CreatedAt = tr.At

		updated, entry, err := s.panels.CreateWithTransition(ctx, panel, tr)
		if errors.Is(err, common.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, storeError(err, apperror.ErrCaseNotFound)
		}

		s.sm.emit(ctx, updated, entry)
		return panel, nil
	}
}

// GetPanel возвращает панель дела тем, кто может читать дело.
func (s *PanelService) GetPanel(ctx context.Context, actor access.Principal, caseID uuid.UUID) (*models.Panel, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	_, panel, err := s.sm.loadVisible(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	if panel == nil {
		return nil, apperror.ErrPanelNotFound
	}
	return panel, nil
}

// AvailableMembers верифицированные пользователи с ролью панели.
func (s *PanelService) AvailableMembers(ctx context.Context, actor access.Principal, role string) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}

	roles := valueobject.RequiredPanelRoles
	if role != "" {
		r, err := valueobject.NewPanelRole(role)
		if err != nil {
			return nil, err
		}
		roles = []valueobject.PanelRole{r}
	}

	ctx, cancel := context.WithTimeout(ctx, s.sm.timeout)
	defer cancel()

	users := []models.User{}
	for _, r := range roles {
		list, err := s.users.ListByRole(ctx, string(r), true)
		if err != nil {
			return nil, storeError(err, nil)
		}
		users = append(users, list...)
	}
	return users, nil
}

// checkPanel проверки в фиксированном порядке: существующая панель, статус дела,
// покрытие ролей, дубликаты, учётные записи участников.
func (s *PanelService) checkPanel(ctx context.Context, c *models.Case, members []PanelMemberInput) error {
	existing, err := s.sm.loadPanel(ctx, c.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.New(apperror.ErrCodePanelAlreadyExists, "панель для дела уже сформирована")
	}

	if c.Status != valueobject.CaseStatusAccepted {
		return apperror.New(apperror.ErrCodeInvalidCaseState, "панель можно сформировать только для принятого дела")
	}

	roles := make([]valueobject.PanelRole, 0, len(members))
	for _, m := range members {
		roles = append(roles, valueobject.PanelRole(m.Role))
	}
	if missing := valueobject.MissingPanelRoles(roles); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, r := range missing {
			names = append(names, string(r))
		}
		return apperror.New(apperror.ErrCodeIncompletePanel, "в панели нет ролей: "+strings.Join(names, ", "))
	}

	ids := make([]uuid.UUID, 0, len(members))
	seen := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.UserID]; dup {
			return apperror.New(apperror.ErrCodeIncompletePanel, "пользователь указан в панели несколько раз")
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return storeError(err, nil)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, m := range members {
		u, ok := byID[m.UserID]
		switch {
		case !ok:
			return apperror.New(apperror.ErrCodeIncompletePanel, fmt.Sprintf("пользователь %s не найден", m.UserID))
		case !u.IsVerified:
			return apperror.New(apperror.ErrCodeIncompletePanel, fmt.Sprintf("пользователь %s не верифицирован", m.UserID))
		case u.Role != m.Role:
			return apperror.New(apperror.ErrCodeIncompletePanel, fmt.Sprintf("роль пользователя %s не совпадает с ролью в панели", m.UserID))
		}
	}
	return nil
}

func buildPanel(caseID uuid.UUID, members []PanelMemberInput) *models.Panel {
	panel := &models.Panel{
		ID:      uuid.New(),
		CaseID:  caseID,
		Members: make([]models.PanelMember, 0, len(members)),
	}
	for _, m := range members {
		panel.Members = append(panel.Members, models.PanelMember{
			ID:      uuid.New(),
			PanelID: panel.ID,
			UserID:  m.UserID,
			Role:    valueobject.PanelRole(m.Role),
		})
	}
	return panel
}

func panelDescription(panel *models.Panel) string {
	return fmt.Sprintf("Сформирована панель медиаторов из %d участников", len(panel.Members))
}
