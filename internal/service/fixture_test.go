package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/danmainah/resolveit-app/internal/access"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository/memstore"
)

type publishedMessage struct {
	Topic string
	Kind  string
	Data  any
}

// recordingPublisher запоминает опубликованные realtime-сообщения.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingPublisher) Publish(topic, kind string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{Topic: topic, Kind: kind, Data: data})
}

func (p *recordingPublisher) all() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

func (p *recordingPublisher) byTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []publishedMessage
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// flakyNotifications отклоняет запись уведомлений, для которых reject возвращает ошибку.
type flakyNotifications struct {
	NotificationRepository

	mu     sync.Mutex
	reject func(n *models.Notification) error
}

func (r *flakyNotifications) setReject(fn func(n *models.Notification) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject = fn
}

func (r *flakyNotifications) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	reject := r.reject
	r.mu.Unlock()

	if reject != nil {
		if err := reject(n); err != nil {
			return err
		}
	}
	return r.NotificationRepository.Create(ctx, n)
}

type fixture struct {
	store         *memstore.Store
	notes         *flakyNotifications
	publisher     *recordingPublisher
	notifications *NotificationService
	cases         *CaseStateMachine
	panels        *PanelService
	agreements    *AgreementService
	users         *UserService

	admin     access.Principal
	plaintiff access.Principal
	defendant access.Principal
	lawyer    access.Principal
	scholar   access.Principal
	expert    access.Principal
	outsider  access.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	pub := &recordingPublisher{}
	notes := &flakyNotifications{NotificationRepository: store.Notifications()}
	notifications := NewNotificationService(notes, pub, 4, time.Second)

	sm := NewCaseStateMachine(CaseStateMachineDeps{
		Cases:        store.Cases(),
		Panels:       store.Panels(),
		Users:        store.Users(),
		Notifier:     notifications,
		Publisher:    pub,
		StoreTimeout: time.Second,
	})

	f := &fixture{
		store:         store,
		notes:         notes,
		publisher:     pub,
		notifications: notifications,
		cases:         sm,
		panels:        NewPanelService(sm, store.Panels(), store.Users()),
		agreements:    NewAgreementService(sm, store.Agreements(), notifications),
		users:         NewUserService(store.Users(), notifications, time.Second),
	}

	f.admin = f.addUser(t, "Admin", models.RoleAdmin, true)
	f.plaintiff = f.addUser(t, "Plaintiff", models.RoleUser, true)
	f.defendant = f.addUser(t, "Defendant", models.RoleUser, true)
	f.lawyer = f.addUser(t, "Lawyer", models.RoleLawyer, true)
	f.scholar = f.addUser(t, "Scholar", models.RoleReligiousScholar, true)
	f.expert = f.addUser(t, "Expert", models.RoleSocialExpert, true)
	f.outsider = f.addUser(t, "Outsider", models.RoleUser, true)

	t.Cleanup(f.wait)
	return f
}

func (f *fixture) addUser(t *testing.T, name, role string, verified bool) access.Principal {
	t.Helper()

	u := &models.User{
		Name:         name,
		Email:        uuid.NewString() + "@resolveit.test",
		PasswordHash: "x",
		Role:         role,
		IsVerified:   verified,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return access.Principal{UserID: u.ID, Role: role}
}

// wait дожидается фоновых рассылок и аудита.
func (f *fixture) wait() {
	f.cases.Wait()
	f.notifications.Wait()
}

func (f *fixture) fileCase(t *testing.T) *models.Case {
	t.Helper()

	c, err := f.cases.FileCase(context.Background(), f.plaintiff, FileCaseInput{
		CaseType:         string(valueobject.CaseTypeFamily),
		IssueDescription: "Спор о разделе имущества после развода",
		OppositeName:     "Иван Петров",
	})
	require.NoError(t, err)
	return c
}

// acceptedCase проводит дело до ACCEPTED с привязанным ответчиком.
func (f *fixture) acceptedCase(t *testing.T) *models.Case {
	t.Helper()
	ctx := context.Background()

	c := f.fileCase(t)
	_, err := f.cases.ContactOppositeParty(ctx, f.admin, c.ID, "")
	require.NoError(t, err)

	defendant := f.defendant.UserID
	c, err = f.cases.RecordOppositePartyResponse(ctx, f.admin, c.ID, ResponseInput{Accepted: true, DefendantID: &defendant})
	require.NoError(t, err)
	return c
}

func (f *fixture) fullPanel() FormPanelInput {
	return FormPanelInput{Members: []PanelMemberInput{
		{UserID: f.lawyer.UserID, Role: models.RoleLawyer},
		{UserID: f.scholar.UserID, Role: models.RoleReligiousScholar},
		{UserID: f.expert.UserID, Role: models.RoleSocialExpert},
	}}
}

// notificationsFor уведомления пользователя по делу.
func (f *fixture) notificationsFor(t *testing.T, userID uuid.UUID, caseID uuid.UUID) []models.Notification {
	t.Helper()
	f.wait()

	list, err := f.store.Notifications().List(context.Background(), userID, 0, 0, false)
	require.NoError(t, err)

	var out []models.Notification
	for _, n := range list {
		if n.CaseID != nil && *n.CaseID == caseID {
			out = append(out, n)
		}
	}
	return out
}
