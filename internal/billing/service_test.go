package billing

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/orders"
	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/config"
	"github.com/traderssquare/storefront-backend/pkg/db/models"
	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	"github.com/traderssquare/storefront-backend/pkg/enums"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

type stubStripeClient struct {
	createdCustomers []*stripe.CustomerParams
	createdSessions  []*stripe.CheckoutSessionParams
	createdPortals   []*stripe.BillingPortalSessionParams
}

func (s *stubStripeClient) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubStripeClient) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	s.createdCustomers = append(s.createdCustomers, params)
	return &stripe.Customer{ID: "cus_created"}, nil
}

func (s *stubStripeClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.createdSessions = append(s.createdSessions, params)
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (s *stubStripeClient) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	s.createdPortals = append(s.createdPortals, params)
	return &stripe.BillingPortalSession{URL: "https://portal.example/session"}, nil
}

func setupBillingService(t *testing.T) (*Service, *stubStripeClient, *gorm.DB) {
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
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  is_paid INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	stripeStub := &stubStripeClient{}
	svc, err := NewService(ServiceParams{
		Users:  users.NewRepository(db),
		Orders: orders.NewRepository(db),
		Stripe: stripeStub,
		Config: config.StripeConfig{
			AppID:               "traderssquare",
			SubscriptionPriceID: "price_plus_monthly",
		},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, stripeStub, db
}

func seedBillingUser(t *testing.T, db *gorm.DB, customerID *string) *models.User {
	t.Helper()

	user := &models.User{
		ID:               uuid.New(),
		Email:            uuid.NewString() + "@example.com",
		Name:             "Billing Tester",
		Cart:             dbtypes.Cart{},
		StripeCustomerID: customerID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateSubscriptionSession_NewCustomer(t *testing.T) {
	svc, stripeStub, db := setupBillingService(t)
	ctx := context.Background()

	user := seedBillingUser(t, db, nil)

	session, err := svc.CreateSubscriptionSession(ctx, user.ID, "https://shop.example/ok", "https://shop.example/cancel")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_test_1", session.URL)

	require.Len(t, stripeStub.createdCustomers, 1)
	custParams := stripeStub.createdCustomers[0]
	assert.Equal(t, user.Email, *custParams.Email)
	assert.Equal(t, user.ID.String(), custParams.Metadata[MetadataKeyUserID])
	assert.Equal(t, "traderssquare", custParams.Metadata[MetadataKeyAppID])

	// The new customer id is backfilled onto the user row.
	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, "cus_created", *stored.StripeCustomerID)

	require.Len(t, stripeStub.createdSessions, 1)
	sessParams := stripeStub.createdSessions[0]
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *sessParams.Mode)
	assert.Equal(t, "cus_created", *sessParams.Customer)
	assert.Equal(t, user.ID.String(), sessParams.Metadata[MetadataKeyUserID])
	require.NotNil(t, sessParams.SubscriptionData)
	assert.Equal(t, user.ID.String(), sessParams.SubscriptionData.Metadata[MetadataKeyUserID])
	assert.Equal(t, "traderssquare", sessParams.SubscriptionData.Metadata[MetadataKeyAppID])
}

func TestCreateSubscriptionSession_ExistingCustomer(t *testing.T) {
	svc, stripeStub, db := setupBillingService(t)
	ctx := context.Background()

	custID := "cus_existing"
	user := seedBillingUser(t, db, &custID)

	_, err := svc.CreateSubscriptionSession(ctx, user.ID, "https://shop.example/ok", "https://shop.example/cancel")
	require.NoError(t, err)

	assert.Empty(t, stripeStub.createdCustomers)
	require.Len(t, stripeStub.createdSessions, 1)
	assert.Equal(t, custID, *stripeStub.createdSessions[0].Customer)
}

func TestCreatePaymentSession(t *testing.T) {
	svc, stripeStub, db := setupBillingService(t)
	ctx := context.Background()

	custID := "cus_existing"
	user := seedBillingUser(t, db, &custID)

	first := &models.Order{ID: uuid.New(), UserID: user.ID, Total: decimal.NewFromFloat(10.50), PaymentStatus: enums.PaymentStatusUnpaid}
	second := &models.Order{ID: uuid.New(), UserID: user.ID, Total: decimal.NewFromFloat(5.00), PaymentStatus: enums.PaymentStatusUnpaid}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(second).Error)

	session, err := svc.CreatePaymentSession(ctx, user.ID, []uuid.UUID{first.ID, second.ID}, "https://shop.example/ok", "https://shop.example/cancel")
	require.NoError(t, err)
	assert.NotEmpty(t, session.URL)

	require.Len(t, stripeStub.createdSessions, 1)
	params := stripeStub.createdSessions[0]
	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)

	gotIDs := strings.Split(params.Metadata[MetadataKeyOrderIDs], ",")
	assert.ElementsMatch(t, []string{first.ID.String(), second.ID.String()}, gotIDs)

	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(1050), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(500), *params.LineItems[1].PriceData.UnitAmount)
}

func TestCreatePaymentSession_Rejections(t *testing.T) {
	svc, _, db := setupBillingService(t)
	ctx := context.Background()

	custID := "cus_existing"
	user := seedBillingUser(t, db, &custID)
	stranger := seedBillingUser(t, db, nil)

	paid := &models.Order{ID: uuid.New(), UserID: user.ID, Total: decimal.NewFromFloat(10), PaymentStatus: enums.PaymentStatusPaid, IsPaid: true}
	foreign := &models.Order{ID: uuid.New(), UserID: stranger.ID, Total: decimal.NewFromFloat(10), PaymentStatus: enums.PaymentStatusUnpaid}
	require.NoError(t, db.Create(paid).Error)
	require.NoError(t, db.Create(foreign).Error)

	_, err := svc.CreatePaymentSession(ctx, user.ID, nil, "https://shop.example/ok", "https://shop.example/cancel")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreatePaymentSession(ctx, user.ID, []uuid.UUID{paid.ID}, "https://shop.example/ok", "https://shop.example/cancel")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = svc.CreatePaymentSession(ctx, user.ID, []uuid.UUID{foreign.ID}, "https://shop.example/ok", "https://shop.example/cancel")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestCreatePortalSession(t *testing.T) {
	svc, stripeStub, db := setupBillingService(t)
	ctx := context.Background()

	custID := "cus_existing"
	withCustomer := seedBillingUser(t, db, &custID)
	withoutCustomer := seedBillingUser(t, db, nil)

	session, err := svc.CreatePortalSession(ctx, withCustomer.ID, "https://shop.example/account")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/session", session.URL)
	require.Len(t, stripeStub.createdPortals, 1)
	assert.Equal(t, custID, *stripeStub.createdPortals[0].Customer)

	_, err = svc.CreatePortalSession(ctx, withoutCustomer.ID, "https://shop.example/account")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
