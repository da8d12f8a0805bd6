package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-orders/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
)

func seedNotifications(t *testing.T, repo Repository, userID uuid.UUID, count int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < count; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.Notification{
			UserID:    userID,
			Type:      enums.NotificationTypeShippingUpdate,
			Title:     "Item on its way",
			Message:   "Widget is being shipped.",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestServiceListPaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	user := uuid.New()
	seedNotifications(t, repo, user, 3)
	seedNotifications(t, repo, uuid.New(), 1)

	first, err := svc.List(context.Background(), ListParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.List(context.Background(), ListParams{UserID: user, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
	assert.NotEqual(t, first.Items[1].ID, second.Items[0].ID)
}

func TestServiceMarkRead(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()
	seedNotifications(t, repo, user, 2)

	page, err := svc.List(ctx, ListParams{UserID: user})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, user, page.Items[0].ID))
	require.NoError(t, svc.MarkRead(ctx, user, page.Items[0].ID))

	err = svc.MarkRead(ctx, uuid.New(), page.Items[0].ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	unread, err := svc.List(ctx, ListParams{UserID: user, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 1)

	count, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestServiceRejectsBadInput(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = NewService(nil)
	assert.Error(t, err)
}
