package cart

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
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

func setupCartService(t *testing.T) (*Service, *gorm.DB) {
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

func seedUser(t *testing.T, db *gorm.DB, cart dbtypes.Cart) *models.User {
	t.Helper()

	user := &models.User{
		ID:    uuid.New(),
		Email: uuid.NewString() + "@example.com",
		Name:  "Cart Tester",
		Cart:  cart,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestService_GetAndReplace(t *testing.T) {
	svc, db := setupCartService(t)
	ctx := context.Background()

	user := seedUser(t, db, dbtypes.Cart{"prod_1": 1})

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, dbtypes.Cart{"prod_1": 1}, got)

	replaced, err := svc.Replace(ctx, user.ID, dbtypes.Cart{"prod_2": 3})
	require.NoError(t, err)
	assert.Equal(t, dbtypes.Cart{"prod_2": 3}, replaced)

	// A replace is absolute, not a merge.
	got, err = svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotContains(t, got, "prod_1")
	assert.Equal(t, 3, got["prod_2"])
}

func TestService_Replace_Validation(t *testing.T) {
	svc, db := setupCartService(t)
	ctx := context.Background()

	user := seedUser(t, db, dbtypes.Cart{})

	_, err := svc.Replace(ctx, user.ID, dbtypes.Cart{"prod_1": 0})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Replace(ctx, user.ID, dbtypes.Cart{"": 2})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestService_UnknownUser(t *testing.T) {
	svc, _ := setupCartService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.Replace(ctx, uuid.New(), dbtypes.Cart{"prod_1": 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
