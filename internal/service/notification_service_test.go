package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmainah/resolveit-app/internal/events"
	"github.com/danmainah/resolveit-app/internal/models"
	"github.com/danmainah/resolveit-app/internal/pkg/apperror"
	"github.com/danmainah/resolveit-app/internal/repository/memstore"
)

func TestFanout_IsolatesFailures(t *testing.T) {
	good1, good2, bad := uuid.New(), uuid.New(), uuid.New()
	notes := &flakyNotifications{NotificationRepository: memstore.New().Notifications()}
	notes.setReject(func(n *models.Notification) error {
		if n.UserID == bad {
			return errors.New("constraint violation")
		}
		return nil
	})

	pub := &recordingPublisher{}
	svc := NewNotificationService(notes, pub, 2, time.Second)

	res := svc.Fanout(context.Background(), NotificationEvent{
		Type:       models.NotificationCaseUpdate,
		Title:      "Статус дела изменён",
		Message:    "Дело принято",
		Recipients: []uuid.UUID{good1, bad, good2, good1, uuid.Nil},
	})

	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)

	for _, id := range []uuid.UUID{good1, good2} {
		count, err := svc.CountUnread(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		msgs := pub.byTopic(events.UserTopic(id))
		require.Len(t, msgs, 1)
		assert.Equal(t, events.KindNotification, msgs[0].Kind)
	}
	assert.Empty(t, pub.byTopic(events.UserTopic(bad)))
}

func TestFanout_NoRecipients(t *testing.T) {
	svc := NewNotificationService(memstore.New().Notifications(), nil, 0, 0)
	res := svc.Fanout(context.Background(), NotificationEvent{Type: models.NotificationSystem})
	assert.Equal(t, FanoutResult{}, res)
}

func TestNotificationService_ReadFlow(t *testing.T) {
	store := memstore.New()
	svc := NewNotificationService(store.Notifications(), nil, 1, time.Second)
	ctx := context.Background()

	owner, other := uuid.New(), uuid.New()
	svc.FanoutAsync(ctx, NotificationEvent{Type: models.NotificationSystem, Title: "a", Message: "1", Recipients: []uuid.UUID{owner}})
	svc.FanoutAsync(ctx, NotificationEvent{Type: models.NotificationSystem, Title: "b", Message: "2", Recipients: []uuid.UUID{owner}})
	svc.Wait()

	list, err := svc.ListNotifications(ctx, owner, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, list, 2)

	err = svc.MarkAsRead(ctx, list[0].ID, other)
	assert.True(t, apperror.IsAccessDenied(err))

	require.NoError(t, svc.MarkAsRead(ctx, list[0].ID, owner))

	unread, err := svc.ListNotifications(ctx, owner, 10, 0, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, list[1].ID, unread[0].ID)

	require.NoError(t, svc.MarkAllAsRead(ctx, owner))
	count, err := svc.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = svc.MarkAsRead(ctx, uuid.New(), owner)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUserService_VerifyUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest := f.addUser(t, "Guest", models.RoleUser, false)

	_, err := f.users.VerifyUser(ctx, f.plaintiff, guest.UserID, true)
	assert.True(t, apperror.IsAccessDenied(err))

	u, err := f.users.VerifyUser(ctx, f.admin, guest.UserID, true)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	_, err = f.cases.FileCase(ctx, guest, FileCaseInput{
		CaseType:         "PROPERTY",
		IssueDescription: "Сосед занял часть участка",
		OppositeName:     "Сосед",
	})
	assert.NoError(t, err)

	f.wait()
	notes, err := f.notifications.ListNotifications(ctx, guest.UserID, 0, 0, false)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotificationSystem, notes[len(notes)-1].Type)

	_, err = f.users.VerifyUser(ctx, f.admin, uuid.New(), true)
	assert.True(t, apperror.IsNotFound(err))

	me, err := f.users.Me(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, guest.UserID, me.ID)
}
