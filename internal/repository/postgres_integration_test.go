package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/danmainah/resolveit-app/internal/db"
	"github.com/danmainah/resolveit-app/internal/domain/valueobject"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/repository"
	"github.com/danmainah/resolveit-app/internal/repository/common"
	"github.com/danmainah/resolveit-app/migrations"
)

// startPostgres поднимает контейнер PostgreSQL и применяет миграции.
// Тест запускается только при RESOLVEIT_INTEGRATION=1, так как нужен Docker.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("RESOLVEIT_INTEGRATION") != "1" {
		t.Skip("RESOLVEIT_INTEGRATION != 1")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("resolveit"),
		postgres.WithUsername("resolveit"),
		postgres.WithPassword("resolveit"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(ctx, conn, migrations.FS))
	// Повторный запуск ничего не применяет.
	require.NoError(t, db.RunMigrations(ctx, conn, migrations.FS))
	return conn
}

func createUser(t *testing.T, users *repository.UserRepository, role string) *models.User {
	t.Helper()

	u := &models.User{
		Name:         "User " + role,
		Email:        uuid.NewString() + "@resolveit.test",
		PasswordHash: "hash",
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestPostgres_CaseLifecycle(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	users := repository.NewUserRepository(conn)
	cases := repository.NewCaseRepository(conn)
	panels := repository.NewPanelRepository(conn)
	agreements := repository.NewAgreementRepository(conn)
	notifications := repository.NewNotificationRepository(conn)

	plaintiff := createUser(t, users, models.RoleUser)
	defendant := createUser(t, users, models.RoleUser)
	lawyer := createUser(t, users, models.RoleLawyer)

	dup := &models.User{Name: "Dup", Email: plaintiff.Email, PasswordHash: "x", Role: models.RoleUser}
	assert.ErrorIs(t, users.Create(ctx, dup), common.ErrAlreadyExists)

	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &models.Case{
		ID:               uuid.New(),
		CaseType:         valueobject.CaseTypeProperty,
		IssueDescription: "Спор о границе участка",
		Status:           valueobject.CaseStatusPending,
		Version:          1,
		PlaintiffID:      plaintiff.ID,
		OppositeParty:    models.OppositeParty{Name: "Сосед"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, cases.Create(ctx, c))

	actor := plaintiff.ID
	// Одна метка времени на все шаги: порядок хронологии задаёт версия дела.
	at := time.Now().UTC()
	step := func(from, to valueobject.CaseStatus, version int64) models.Transition {
		return models.Transition{
			CaseID:          c.ID,
			From:            from,
			To:              to,
			ExpectedVersion: version,
			Description:     string(to),
			ActorID:         &actor,
			At:              at,
		}
	}

	updated, entry, err := cases.ApplyTransition(ctx, step(valueobject.CaseStatusPending, valueobject.CaseStatusAwaitingResponse, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, valueobject.CaseStatusAwaitingResponse, entry.Status)

	// Устаревшая версия не применяется и не добавляет записи.
	_, _, err = cases.ApplyTransition(ctx, step(valueobject.CaseStatusPending, valueobject.CaseStatusAwaitingResponse, 1))
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	accept := step(valueobject.CaseStatusAwaitingResponse, valueobject.CaseStatusAccepted, 2)
	accept.DefendantID = &defendant.ID
	updated, _, err = cases.ApplyTransition(ctx, accept)
	require.NoError(t, err)
	require.NotNil(t, updated.DefendantID)
	assert.Equal(t, defendant.ID, *updated.DefendantID)

	panel := &models.Panel{
		ID:        uuid.New(),
		CaseID:    c.ID,
		CreatedAt: time.Now().UTC(),
		Members:   []models.PanelMember{{ID: uuid.New(), UserID: lawyer.ID, Role: valueobject.PanelRoleLawyer}},
	}
	panel.Members[0].PanelID = panel.ID

	updated, _, err = panels.CreateWithTransition(ctx, panel, step(valueobject.CaseStatusAccepted, valueobject.CaseStatusPanelCreated, 3))
	require.NoError(t, err)
	assert.Equal(t, valueobject.CaseStatusPanelCreated, updated.Status)

	second := &models.Panel{ID: uuid.New(), CaseID: c.ID, CreatedAt: time.Now().UTC()}
	_, _, err = panels.CreateWithTransition(ctx, second, step(valueobject.CaseStatusPanelCreated, valueobject.CaseStatusPanelCreated, 4))
	assert.ErrorIs(t, err, common.ErrPanelExists)

	stored, err := panels.GetByCaseID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasMember(lawyer.ID))

	timeline, err := cases.ListUpdates(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	wantOrder := []valueobject.CaseStatus{
		valueobject.CaseStatusAwaitingResponse,
		valueobject.CaseStatusAccepted,
		valueobject.CaseStatusPanelCreated,
	}
	for i, u := range timeline {
		assert.Equal(t, wantOrder[i], u.Status)
		assert.Equal(t, int64(i+2), u.CaseVersion)
	}

	// Консенсус: подписи обеих сторон закрывают дело в одной транзакции.
	a := &models.Agreement{
		ID:        uuid.New(),
		CaseID:    c.ID,
		Content:   "Граница проходит по забору",
		Status:    valueobject.AgreementStatusDraft,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, agreements.Create(ctx, a))

	decide := func(ag *models.Agreement, cs *models.Case) (models.ConsensusDecision, error) {
		if !ag.HasSigned(cs.PlaintiffID) || cs.DefendantID == nil || !ag.HasSigned(*cs.DefendantID) {
			return models.ConsensusDecision{}, nil
		}
		tr := step(cs.Status, valueobject.CaseStatusResolved, cs.Version)
		return models.ConsensusDecision{Reached: true, Transition: &tr}, nil
	}

	var wg sync.WaitGroup
	outcomes := make([]*models.SignOutcome, 2)
	errs := make([]error, 2)
	for i, signer := range []uuid.UUID{plaintiff.ID, defendant.ID} {
		wg.Add(1)
		go func(i int, signer uuid.UUID) {
			defer wg.Done()
			outcomes[i], errs[i] = agreements.Sign(ctx, &models.AgreementSignature{
				ID:          uuid.New(),
				AgreementID: a.ID,
				UserID:      signer,
				IPAddress:   "127.0.0.1",
				UserAgent:   "integration",
				SignedAt:    time.Now().UTC(),
			}, decide)
		}(i, signer)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, outcomes[0].Consensus, outcomes[1].Consensus, "ровно одна подпись достигает консенсуса")

	final, err := cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CaseStatusResolved, final.Status)

	signed, err := agreements.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.AgreementStatusSigned, signed.Status)
	assert.Len(t, signed.Signatures, 2)

	_, err = agreements.Sign(ctx, &models.AgreementSignature{ID: uuid.New(), AgreementID: a.ID, UserID: plaintiff.ID, SignedAt: time.Now().UTC()}, decide)
	assert.ErrorIs(t, err, common.ErrAgreementLocked)

	n := &models.Notification{UserID: plaintiff.ID, Type: models.NotificationCaseResolved, Title: "Дело закрыто", Message: "ok", CaseID: &c.ID}
	require.NoError(t, notifications.Create(ctx, n))
	count, err := notifications.CountUnread(ctx, plaintiff.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, notifications.MarkAsRead(ctx, n.ID))
	count, err = notifications.CountUnread(ctx, plaintiff.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostgres_CaseListFilters(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	users := repository.NewUserRepository(conn)
	cases := repository.NewCaseRepository(conn)
	owner := createUser(t, users, models.RoleUser)

	for i, ct := range []valueobject.CaseType{valueobject.CaseTypeFamily, valueobject.CaseTypeFamily, valueobject.CaseTypeBusiness} {
		now := time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, cases.Create(ctx, &models.Case{
			ID:               uuid.New(),
			CaseType:         ct,
			IssueDescription: "Описание спора номер " + string(ct),
			Status:           valueobject.CaseStatusPending,
			Version:          1,
			PlaintiffID:      owner.ID,
			OppositeParty:    models.OppositeParty{Name: "Ответчик"},
			CreatedAt:        now,
			UpdatedAt:        now,
		}))
	}

	familyType := valueobject.CaseTypeFamily
	list, total, err := cases.List(ctx, models.CaseFilter{PartyID: &owner.ID, Type: &familyType, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 1)
}
