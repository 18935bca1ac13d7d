package membership

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/db/models"
	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	"github.com/traderssquare/storefront-backend/pkg/enums"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

func setupMembershipService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  cart TEXT NOT NULL DEFAULT '{}',
  stripe_customer_id TEXT UNIQUE,
  subscription_id TEXT UNIQUE,
  subscription_status TEXT,
  is_plus_member INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	svc, err := NewService(ServiceParams{
		Users:  users.NewRepository(db),
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, db
}

func TestService_Status(t *testing.T) {
	svc, db := setupMembershipService(t)
	ctx := context.Background()

	active := enums.SubscriptionStatusActive
	member := &models.User{
		ID:                 uuid.New(),
		Email:              "plus@example.com",
		Name:               "Plus Member",
		Cart:               dbtypes.Cart{},
		SubscriptionStatus: &active,
		IsPlusMember:       true,
	}
	require.NoError(t, db.Create(member).Error)

	got, err := svc.Status(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPlusMember)
	require.NotNil(t, got.SubscriptionStatus)
	assert.Equal(t, enums.SubscriptionStatusActive, *got.SubscriptionStatus)

	free := &models.User{
		ID:    uuid.New(),
		Email: "free@example.com",
		Name:  "Free User",
		Cart:  dbtypes.Cart{},
	}
	require.NoError(t, db.Create(free).Error)

	got, err = svc.Status(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPlusMember)
	assert.Nil(t, got.SubscriptionStatus)
}

func TestService_Status_UnknownUser(t *testing.T) {
	svc, _ := setupMembershipService(t)

	_, err := svc.Status(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
