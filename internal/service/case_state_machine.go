package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/events"
	"github.com/danmainah/resolveit-app/internal/goroutine"
	"github.com/danmainah/resolveit-app/internal/logger"
	"github.com/danmainah/resolveit-app/internal/metrics"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/common"
	"github.com/danmainah/resolveit-app/internal/validation"
)

const (
	defaultStoreTimeout = 5 * time.Second
	auditTimeout        = 5 * time.Second

	defaultCaseLimit = 20
	maxCaseLimit     = 100
)

// CaseStateMachineDeps зависимости машины состояний.
type CaseStateMachineDeps struct {
	Cases        CaseRepository
	Panels       PanelRepository
	Users        UserRepository
	Notifier     Notifier
	Publisher    events.Publisher
	Audit        events.AuditSink
	StoreTimeout time.Duration
}

// CaseStateMachine единственная точка изменения статуса дела.
// После успешной записи она же рассылает уведомления, realtime-событие и событие аудита.
type CaseStateMachine struct {
	cases     CaseRepository
	panels    PanelRepository
	users     UserRepository
	notifier  Notifier
	publisher events.Publisher
	audit     events.AuditSink
	timeout   time.Duration
	locks     *caseLocks
	tracker   goroutine.Tracker
	now       func() time.Time
}

// NewCaseStateMachine создаёт машину состояний дел.
func NewCaseStateMachine(deps CaseStateMachineDeps) *CaseStateMachine {
	m := &CaseStateMachine{
		cases:     deps.Cases,
		panels:    deps.Panels,
		users:     deps.Users,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		audit:     deps.Audit,
		timeout:   deps.StoreTimeout,
		locks:     newCaseLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if m.publisher == nil {
		m.publisher = events.NopPublisher{}
	}
	if m.audit == nil {
		m.audit = events.NopSink{}
	}
	if m.timeout <= 0 {
		m.timeout = defaultStoreTimeout
	}
	return m
}

// FileCaseInput данные новой заявки.
type FileCaseInput struct {
	CaseType           string  `json:"case_type" validate:"required,case_type"`
	IssueDescription   string  `json:"issue_description" validate:"required,notblank,min=10,max=2000"`
	IsCourtPending     bool    `json:"is_court_pending"`
	CaseNumber         *string `json:"case_number" validate:"omitempty,docref,max=50"`
	FIRNumber          *string `json:"fir_number" validate:"omitempty,docref,max=50"`
	CourtPoliceStation *string `json:"court_police_station" validate:"omitempty,max=100"`
	OppositeName       string  `json:"opposite_name" validate:"required,notblank,min=2,max=50"`
	OppositeEmail      *string `json:"opposite_email" validate:"omitempty,email"`
	OppositePhone      *string `json:"opposite_phone" validate:"omitempty,min=10,max=20"`
	OppositeAddress    *string `json:"opposite_address" validate:"omitempty,max=200"`
}

// ResponseInput ответ второй стороны.
type ResponseInput struct {
	Accepted    bool       `json:"accepted"`
	DefendantID *uuid.UUID `json:"defendant_id"`
	Note        string     `json:"note" validate:"max=1000"`
}

// MediationInput параметры начала медиации.
type MediationInput struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Note        string     `json:"note" validate:"max=1000"`
}

// ResolveInput итог медиации.
type ResolveInput struct {
	Resolved bool   `json:"resolved"`
	Details  string `json:"details" validate:"required,notblank,max=5000"`
}

// StatusInput ручная смена статуса.
type StatusInput struct {
	Status      string `json:"status" validate:"required,case_status"`
	Description string `json:"description" validate:"max=1000"`
}

// CaseListInput фильтры выборки дел.
type CaseListInput struct {
	Status string
	Type   string
	Search string
	Limit  int
	Offset int
}

// planFunc строит переход по актуальному состоянию дела или отклоняет его.
type planFunc func(c *models.Case) (models.Transition, error)

// FileCase регистрирует новое дело. Подача не является переходом, поэтому хронология остаётся пустой.
func (m *CaseStateMachine) FileCase(ctx context.Context, actor access.Principal, in FileCaseInput) (*models.Case, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	user, err := m.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, apperror.ErrUserNotFound)
	}
	if !user.IsVerified {
		return nil, apperror.New(apperror.ErrCodeAccessDenied, "подавать дела могут только верифицированные пользователи")
	}

	now := m.now()
	c := &models.Case{
		ID:                 uuid.New(),
		CaseType:           valueobject.CaseType(in.CaseType),
		IssueDescription:   strings.TrimSpace(in.IssueDescription),
		IsCourtPending:     in.IsCourtPending,
		CaseNumber:         in.CaseNumber,
		FIRNumber:          in.FIRNumber,
		CourtPoliceStation: in.CourtPoliceStation,
		Status:             valueobject.CaseStatusPending,
		Version:            1,
		PlaintiffID:        actor.UserID,
		OppositeParty: models.OppositeParty{
			Name:    strings.TrimSpace(in.OppositeName),
			Email:   in.OppositeEmail,
			Phone:   in.OppositePhone,
			Address: in.OppositeAddress,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.cases.Create(ctx, c); err != nil {
		return nil, storeError(err, nil)
	}
	metrics.CasesFiledTotal.Inc()

	m.publisher.Publish(events.AdminTopic, events.KindCaseFiled, events.CasePayload{
		CaseID:  c.ID,
		Status:  string(c.Status),
		Message: "Зарегистрировано новое дело",
		Version: c.Version,
	})

	admins, err := m.users.ListByRole(ctx, models.RoleAdmin, false)
	if err != nil {
		logger.Component("cases").WithError(err).Warn("не удалось получить список администраторов")
	} else if m.notifier != nil {
		ids := make([]uuid.UUID, 0, len(admins))
		for _, a := range admins {
			ids = append(ids, a.ID)
		}
		caseID := c.ID
		m.notifier.FanoutAsync(ctx, NotificationEvent{
			Type:       models.NotificationSystem,
			Title:      "Новое дело",
			Message:    "Зарегистрировано новое дело: " + string(c.CaseType),
			CaseID:     &caseID,
			Recipients: ids,
		})
	}

	m.emitAudit(ctx, c, "case_filed", "Дело зарегистрировано", &actor.UserID)
	return c, nil
}

// ContactOppositeParty фиксирует, что вторая сторона уведомлена о заявке.
func (m *CaseStateMachine) ContactOppositeParty(ctx context.Context, actor access.Principal, caseID uuid.UUID, note string) (*models.Case, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}

	return m.transition(ctx, caseID, func(c *models.Case) (models.Transition, error) {
		return m.newTransition(c, valueobject.CaseStatusAwaitingResponse, describe(note, "Вторая сторона уведомлена о заявке"), actor)
	})
}

// RecordOppositePartyResponse фиксирует согласие или отказ второй стороны.
func (m *CaseStateMachine) RecordOppositePartyResponse(ctx context.Context, actor access.Principal, caseID uuid.UUID, in ResponseInput) (*models.Case, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if in.Accepted && in.DefendantID != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, m.timeout)
		_, err := m.users.GetByID(lookupCtx, *in.DefendantID)
		cancel()
		if err != nil {
			return nil, storeError(err, apperror.ErrUserNotFound)
		}
	}

	return m.transition(ctx, caseID, func(c *models.Case) (models.Transition, error) {
		if !in.Accepted {
			return m.newTransition(c, valueobject.CaseStatusRejected, describe(in.Note, "Вторая сторона отказалась от медиации"), actor)
		}

		tr, err := m.newTransition(c, valueobject.CaseStatusAccepted, describe(in.Note, "Вторая сторона согласилась на медиацию"), actor)
		if err != nil {
			return tr, err
		}
		if in.DefendantID != nil {
			if *in.DefendantID == c.PlaintiffID {
				return tr, apperror.Validation(map[string]string{"defendant_id": "ответчик не может совпадать с истцом"})
			}
			defendant := *in.DefendantID
			tr.DefendantID = &defendant
		}
		return tr, nil
	})
}

// StartMediation начинает медиацию сформированной панелью.
func (m *CaseStateMachine) StartMediation(ctx context.Context, actor access.Principal, caseID uuid.UUID, in MediationInput) (*models.Case, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	return m.transition(ctx, caseID, func(c *models.Case) (models.Transition, error) {
		tr, err := m.newTransition(c, valueobject.CaseStatusMediationInProgress, describe(in.Note, "Медиация начата"), actor)
		if err != nil {
			return tr, err
		}
		stampMediation(&tr)
		if in.ScheduledAt != nil {
			scheduled := in.ScheduledAt.UTC()
			tr.MediationScheduledAt = &scheduled
		}
		return tr, nil
	})
}

// Resolve завершает медиацию с результатом RESOLVED или UNRESOLVED.
func (m *CaseStateMachine) Resolve(ctx context.Context, actor access.Principal, caseID uuid.UUID, in ResolveInput) (*models.Case, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAccessDenied
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	target := valueobject.CaseStatusUnresolved
	description := "Медиация завершена без урегулирования"
	if in.Resolved {
		target = valueobject.CaseStatusResolved
		description = "Дело урегулировано по итогам медиации"
	}

	return m.transition(ctx, caseID, func(c *models.Case) (models.Transition, error) {
		tr, err := m.newTransition(c, target, description, actor)
		if err != nil {
			return tr, err
		}
		details := strings.TrimSpace(in.Details)
		stampMediation(&tr)
		tr.Resolution = &details
		return tr, nil
	})
}

// UpdateStatus общий переход по графу для администратора или участника панели.
func (m *CaseStateMachine) UpdateStatus(ctx context.Context, actor access.Principal, caseID uuid.UUID, in StatusInput) (*models.Case, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	target := valueobject.CaseStatus(in.Status)

	return m.transition(ctx, caseID, func(c *models.Case) (models.Transition, error) {
		panel, err := m.loadPanel(ctx, c.ID)
		if err != nil {
			return models.Transition{}, err
		}
		if !access.CanOverrideStatus(actor, panel) {
			return models.Transition{}, apperror.ErrAccessDenied
		}
		if target == valueobject.CaseStatusPanelCreated && panel == nil {
			return models.Transition{}, apperror.New(apperror.ErrCodeInvalidCaseState, "панель для дела ещё не сформирована")
		}
		tr, err := m.newTransition(c, target, describe(in.Description, "Статус дела изменён"), actor)
		if err != nil {
			return tr, err
		}
		stampMediation(&tr)
		return tr, nil
	})
}

// GetCase возвращает дело участнику, члену панели или администратору.
func (m *CaseStateMachine) GetCase(ctx context.Context, actor access.Principal, caseID uuid.UUID) (*models.Case, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	c, _, err := m.loadVisible(ctx, actor, caseID)
	return c, err
}

// Timeline возвращает хронологию дела.
func (m *CaseStateMachine) Timeline(ctx context.Context, actor access.Principal, caseID uuid.UUID) ([]models.CaseUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, _, err := m.loadVisible(ctx, actor, caseID); err != nil {
		return nil, err
	}

	updates, err := m.cases.ListUpdates(ctx, caseID)
	if err != nil {
		return nil, storeError(err, apperror.ErrCaseNotFound)
	}
	return updates, nil
}

// ListMyCases дела, где пользователь истец или ответчик.
func (m *CaseStateMachine) ListMyCases(ctx context.Context, actor access.Principal, in CaseListInput) ([]models.Case, int, error) {
	in.Search = ""
	filter, err := buildCaseFilter(in)
	if err != nil {
		return nil, 0, err
	}
	partyID := actor.UserID
	filter.PartyID = &partyID

	return m.listCases(ctx, filter)
}

// ListCases выборка всех дел для администратора.
func (m *CaseStateMachine) ListCases(ctx context.Context, actor access.Principal, in CaseListInput) ([]models.Case, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperror.ErrAccessDenied
	}
	filter, err := buildCaseFilter(in)
	if err != nil {
		return nil, 0, err
	}
	return m.listCases(ctx, filter)
}

// Wait ждёт фоновые задачи машины состояний.
func (m *CaseStateMachine) Wait() {
	m.tracker.Wait()
}

func (m *CaseStateMachine) listCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cases, total, err := m.cases.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, nil)
	}
	return cases, total, nil
}

// transition общий цикл: блокировка дела, чтение, проверка, условная запись.
// При конфликте версии дело перечитывается и переход проверяется заново один раз.
func (m *CaseStateMachine) transition(ctx context.Context, caseID uuid.UUID, plan planFunc) (*models.Case, error) {
	unlock := m.locks.Lock(caseID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		c, err := m.cases.GetByID(ctx, caseID)
		if err != nil {
			return nil, storeError(err, apperror.ErrCaseNotFound)
		}

		tr, err := plan(c)
		if err != nil {
			metrics.CaseTransitionsTotal.WithLabelValues(string(tr.To), "rejected").Inc()
			return nil, err
		}

		updated, entry, err := m.cases.ApplyTransition(ctx, tr)
		if errors.Is(err, common.ErrVersionConflict) && attempt == 0 {
			metrics.CaseTransitionsTotal.WithLabelValues(string(tr.To), "retried").Inc()
			continue
		}
		if err != nil {
			metrics.CaseTransitionsTotal.WithLabelValues(string(tr.To), "failed").Inc()
			return nil, storeError(err, apperror.ErrCaseNotFound)
		}

		m.emit(ctx, updated, entry)
		return updated, nil
	}
}

// newTransition проверяет ребро графа и заполняет общие поля перехода.
func (m *CaseStateMachine) newTransition(c *models.Case, to valueobject.CaseStatus, description string, actor access.Principal) (models.Transition, error) {
	tr := models.Transition{
		CaseID:          c.ID,
		From:            c.Status,
		To:              to,
		ExpectedVersion: c.Version,
		Description:     description,
		At:              m.now(),
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		tr.ActorID = &id
	}
	if c.Status.IsTerminal() {
		return tr, apperror.New(apperror.ErrCodeInvalidTransition, "дело завершено в статусе "+string(c.Status)+", переход невозможен")
	}
	if !c.Status.CanTransitionTo(to) {
		return tr, errInvalidTransition(string(c.Status), string(to))
	}
	return tr, nil
}

// stampMediation отмечает начало или конец медиации по целевому статусу.
func stampMediation(tr *models.Transition) {
	at := tr.At
	switch tr.To {
	case valueobject.CaseStatusMediationInProgress:
		tr.MediationScheduledAt = &at
		tr.MediationStartedAt = &at
	case valueobject.CaseStatusResolved, valueobject.CaseStatusUnresolved:
		tr.MediationEndedAt = &at
	}
}

// emit публикует результат зафиксированного перехода. Вызывается под блокировкой дела.
func (m *CaseStateMachine) emit(ctx context.Context, c *models.Case, entry *models.CaseUpdate) {
	metrics.CaseTransitionsTotal.WithLabelValues(string(c.Status), "applied").Inc()

	m.publisher.Publish(events.CaseTopic(c.ID), events.KindCaseUpdate, events.CasePayload{
		CaseID:  c.ID,
		Status:  string(c.Status),
		Message: entry.Description,
		Version: c.Version,
	})

	if m.notifier != nil {
		panel, err := m.loadPanel(ctx, c.ID)
		if err != nil {
			logger.Component("cases").WithFields(logrus.Fields{
				"case_id": c.ID,
				"error":   err,
			}).Warn("не удалось загрузить панель для рассылки")
		}

		kind, recipients := Recipients(c, panel)
		if len(recipients) > 0 {
			caseID := c.ID
			m.notifier.FanoutAsync(ctx, NotificationEvent{
				Type:       kind,
				Title:      notificationTitle(c.Status),
				Message:    entry.Description,
				CaseID:     &caseID,
				Recipients: recipients,
			})
		}
	}

	m.emitAudit(ctx, c, "case_transition", entry.Description, entry.ActorID)
}

func (m *CaseStateMachine) emitAudit(ctx context.Context, c *models.Case, kind, description string, actorID *uuid.UUID) {
	ev := events.AuditEvent{
		CaseID:      c.ID,
		Kind:        kind,
		Status:      string(c.Status),
		Version:     c.Version,
		Description: description,
		ActorID:     actorID,
		OccurredAt:  c.UpdatedAt,
	}

	detached := context.WithoutCancel(ctx)
	m.tracker.Go(func() {
		auditCtx, cancel := context.WithTimeout(detached, auditTimeout)
		defer cancel()

		if err := m.audit.Emit(auditCtx, ev); err != nil {
			metrics.AuditEventsTotal.WithLabelValues("failed").Inc()
			logger.Component("audit").WithFields(logrus.Fields{
				"case_id": ev.CaseID,
				"kind":    ev.Kind,
				"error":   err,
			}).Warn("не удалось отправить событие аудита")
			return
		}
		metrics.AuditEventsTotal.WithLabelValues("sent").Inc()
	})
}

// loadPanel возвращает панель дела или nil, если её нет.
func (m *CaseStateMachine) loadPanel(ctx context.Context, caseID uuid.UUID) (*models.Panel, error) {
	panel, err := m.panels.GetByCaseID(ctx, caseID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, nil)
	}
	return panel, nil
}

// loadVisible загружает дело и панель и проверяет право чтения.
func (m *CaseStateMachine) loadVisible(ctx context.Context, actor access.Principal, caseID uuid.UUID) (*models.Case, *models.Panel, error) {
	c, err := m.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, nil, storeError(err, apperror.ErrCaseNotFound)
	}
	panel, err := m.loadPanel(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanViewCase(actor, c, panel) {
		return nil, nil, apperror.ErrAccessDenied
	}
	return c, panel, nil
}

func buildCaseFilter(in CaseListInput) (models.CaseFilter, error) {
	f := models.CaseFilter{
		Search: strings.TrimSpace(in.Search),
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	if f.Limit <= 0 || f.Limit > maxCaseLimit {
		f.Limit = defaultCaseLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if in.Status != "" {
		status, err := valueobject.NewCaseStatus(in.Status)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	if in.Type != "" {
		caseType, err := valueobject.NewCaseType(in.Type)
		if err != nil {
			return f, err
		}
		f.Type = &caseType
	}
	return f, nil
}

func describe(note, fallback string) string {
	if s := strings.TrimSpace(note); s != "" {
		return s
	}
	return fallback
}
