package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
)

// OppositeParty описывает вторую сторону до привязки её учётной записи.
type OppositeParty struct {
	Name    string  `db:"opposite_name" json:"name"`
	Email   *string `db:"opposite_email" json:"email,omitempty"`
	Phone   *string `db:"opposite_phone" json:"phone,omitempty"`
	Address *string `db:"opposite_address" json:"address,omitempty"`
}

// Case описывает спор, проходящий через процесс медиации.
type Case struct {
	ID                   uuid.UUID              `db:"id" json:"id"`
	CaseType             valueobject.CaseType   `db:"case_type" json:"case_type"`
	IssueDescription     string                 `db:"issue_description" json:"issue_description"`
	IsCourtPending       bool                   `db:"is_court_pending" json:"is_court_pending"`
	CaseNumber           *string                `db:"case_number" json:"case_number,omitempty"`
	FIRNumber            *string                `db:"fir_number" json:"fir_number,omitempty"`
	CourtPoliceStation   *string                `db:"court_police_station" json:"court_police_station,omitempty"`
	Status               valueobject.CaseStatus `db:"status" json:"status"`
	Version              int64                  `db:"version" json:"version"`
	PlaintiffID          uuid.UUID              `db:"plaintiff_id" json:"plaintiff_id"`
	DefendantID          *uuid.UUID             `db:"defendant_id" json:"defendant_id,omitempty"`
	OppositeParty        `json:"opposite_party"`
	MediationScheduledAt *time.Time `db:"mediation_scheduled_at" json:"mediation_scheduled_at,omitempty"`
	MediationStartedAt   *time.Time `db:"mediation_started_at" json:"mediation_started_at,omitempty"`
	MediationEndedAt     *time.Time `db:"mediation_ended_at" json:"mediation_ended_at,omitempty"`
	Resolution           *string    `db:"resolution" json:"resolution,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// PartyIDs возвращает истца и, если привязан, ответчика.
func (c *Case) PartyIDs() []uuid.UUID {
	ids := []uuid.UUID{c.PlaintiffID}
	if c.DefendantID != nil {
		ids = append(ids, *c.DefendantID)
	}
	return ids
}

// CaseUpdate запись в хронологии дела. Не изменяется после создания.
type CaseUpdate struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	CaseID      uuid.UUID              `db:"case_id" json:"case_id"`
	Status      valueobject.CaseStatus `db:"status" json:"status"`
	Description string                 `db:"description" json:"description"`
	ActorID     *uuid.UUID             `db:"actor_id" json:"actor_id,omitempty"`
	CaseVersion int64                  `db:"case_version" json:"case_version"` // версия дела после перехода, задаёт порядок хронологии
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// Transition условное изменение статуса дела. Применяется только если дело
// всё ещё находится в статусе From с версией ExpectedVersion.
type Transition struct {
	CaseID          uuid.UUID
	From            valueobject.CaseStatus
	To              valueobject.CaseStatus
	ExpectedVersion int64
	Description     string
	ActorID         *uuid.UUID
	At              time.Time

	DefendantID          *uuid.UUID
	MediationScheduledAt *time.Time
	MediationStartedAt   *time.Time
	MediationEndedAt     *time.Time
	Resolution           *string
}

// ApplyTo переносит изменения перехода на копию дела.
func (t Transition) ApplyTo(c *Case) {
	c.Status = t.To
	c.Version++
	c.UpdatedAt = t.At
	if t.DefendantID != nil {
		id := *t.DefendantID
		c.DefendantID = &id
	}
	if t.MediationScheduledAt != nil {
		c.MediationScheduledAt = t.MediationScheduledAt
	}
	if t.MediationStartedAt != nil {
		c.MediationStartedAt = t.MediationStartedAt
	}
	if t.MediationEndedAt != nil {
		c.MediationEndedAt = t.MediationEndedAt
	}
	if t.Resolution != nil {
		c.Resolution = t.Resolution
	}
}

// Update формирует запись хронологии для перехода.
func (t Transition) Update() *CaseUpdate {
	return &CaseUpdate{
		ID:          uuid.New(),
		CaseID:      t.CaseID,
		Status:      t.To,
		Description: t.Description,
		ActorID:     t.ActorID,
		CaseVersion: t.ExpectedVersion + 1,
		CreatedAt:   t.At,
	}
}

// CaseFilter параметры выборки дел.
type CaseFilter struct {
	Status  *valueobject.CaseStatus
	Type    *valueobject.CaseType
	Search  string
	PartyID *uuid.UUID
	Limit   int
	Offset  int
}
