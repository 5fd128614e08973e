// Package memstore реализует хранилище в памяти с той же семантикой,
// что и репозитории PostgreSQL. Используется в тестах и при STORE_DRIVER=memory.
package memstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/common"
)

// Store общее состояние всех репозиториев. Все операции выполняются под одним мьютексом,
// поэтому составные записи атомарны так же, как транзакции в базе.
type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]models.User
	cases         map[uuid.UUID]models.Case
	updates       map[uuid.UUID][]models.CaseUpdate
	panels        map[uuid.UUID]models.Panel // по case_id
	agreements    map[uuid.UUID]models.Agreement
	templates     map[uuid.UUID]models.AgreementTemplate
	notifications []models.Notification
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]models.User),
		cases:      make(map[uuid.UUID]models.Case),
		updates:    make(map[uuid.UUID][]models.CaseUpdate),
		panels:     make(map[uuid.UUID]models.Panel),
		agreements: make(map[uuid.UUID]models.Agreement),
		templates:  make(map[uuid.UUID]models.AgreementTemplate),
	}
}

func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }
func (s *Store) Cases() *CaseRepository                 { return &CaseRepository{s: s} }
func (s *Store) Panels() *PanelRepository               { return &PanelRepository{s: s} }
func (s *Store) Agreements() *AgreementRepository       { return &AgreementRepository{s: s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

// applyTransitionLocked условная запись перехода. Вызывать под s.mu.
func (s *Store) applyTransitionLocked(tr models.Transition) (*models.Case, *models.CaseUpdate, error) {
	c, ok := s.cases[tr.CaseID]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	if c.Status != tr.From || c.Version != tr.ExpectedVersion {
		return nil, nil, common.ErrVersionConflict
	}

	tr.ApplyTo(&c)
	entry := tr.Update()

	s.cases[c.ID] = c
	s.updates[c.ID] = append(s.updates[c.ID], *entry)

	out := c
	return &out, entry, nil
}

func copyPanel(p models.Panel) *models.Panel {
	p.Members = append([]models.PanelMember{}, p.Members...)
	return &p
}

func copyAgreement(a models.Agreement) *models.Agreement {
	a.Signatures = append([]models.AgreementSignature{}, a.Signatures...)
	return &a
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID.String() < users[j].ID.String()
	})
}
