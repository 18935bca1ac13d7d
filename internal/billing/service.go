package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/orders"
	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/config"
	"github.com/traderssquare/storefront-backend/pkg/db/models"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

// Metadata keys stamped into every checkout session. The webhook reconciler
// reads these same keys back off completed sessions.
const (
	MetadataKeyUserID   = "userId"
	MetadataKeyAppID    = "appId"
	MetadataKeyOrderIDs = "orderIds"
)

// Session is the client-facing view of a created Stripe session.
type Session struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

type ServiceParams struct {
	Users  users.Repository
	Orders orders.Repository
	Stripe StripeBillingClient
	Config config.StripeConfig
	Logger *logger.Logger
}

// Service creates Stripe checkout and portal sessions for storefront users.
type Service struct {
	users  users.Repository
	orders orders.Repository
	stripe StripeBillingClient
	cfg    config.StripeConfig
	logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service requires a users repository")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service requires an orders repository")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service requires a stripe client")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing service requires a logger")
	}
	return &Service{
		users:  params.Users,
		orders: params.Orders,
		stripe: params.Stripe,
		cfg:    params.Config,
		logger: params.Logger,
	}, nil
}

// CreateSubscriptionSession starts a subscription checkout for the user. The
// user id and app id ride along as metadata on both the session and the
// subscription it creates, so later webhook deliveries can resolve the account
// without guessing.
func (s *Service) CreateSubscriptionSession(ctx context.Context, userID uuid.UUID, successURL, cancelURL string) (*Session, error) {
	if s.cfg.SubscriptionPriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription price is not configured")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	metadata := s.sessionMetadata(userID)
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.SubscriptionPriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Metadata = metadata

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating subscription checkout session")
	}

	s.logger.Info(s.logger.WithField(ctx, "session_id", session.ID), "subscription checkout session created")
	return &Session{ID: session.ID, URL: session.URL}, nil
}

// CreatePaymentSession starts a one-time checkout covering the given unpaid
// orders. Order ids are joined into session metadata so the completed-session
// webhook can mark exactly these orders paid.
func (s *Service) CreatePaymentSession(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID, successURL, cancelURL string) (*Session, error) {
	if len(orderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(orderIDs))
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
					WithDetails(map[string]string{"orderId": orderID.String()})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}
		if order.UserID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.IsPaid {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid").
				WithDetails(map[string]string{"orderId": orderID.String()})
		}

		ids = append(ids, orderID.String())
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(order.Total.Mul(decimal.NewFromInt(100)).IntPart()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order " + orderID.String()),
				},
			},
		})
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	metadata := s.sessionMetadata(userID)
	metadata[MetadataKeyOrderIDs] = strings.Join(ids, ",")

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems:  lineItems,
	}
	params.Metadata = metadata

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment checkout session")
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"session_id": session.ID,
		"orders":     len(ids),
	}), "payment checkout session created")
	return &Session{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession opens the processor's billing portal for a user that has
// already checked out at least once.
func (s *Service) CreatePortalSession(ctx context.Context, userID uuid.UUID, returnURL string) (*Session, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user has no billing profile yet")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}

	session, err := s.stripe.CreatePortalSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating billing portal session")
	}
	return &Session{URL: session.URL}, nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

// ensureCustomer returns the user's processor customer id, creating and
// backfilling one when the user has never checked out before.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
	}
	params.AddMetadata(MetadataKeyUserID, user.ID.String())
	params.AddMetadata(MetadataKeyAppID, s.cfg.AppID)

	created, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating stripe customer")
	}

	if err := s.users.SetStripeCustomerID(ctx, user.ID, created.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving stripe customer id")
	}
	user.StripeCustomerID = &created.ID

	s.logger.Info(s.logger.WithField(ctx, "customer_id", created.ID), "stripe customer created")
	return created.ID, nil
}

func (s *Service) sessionMetadata(userID uuid.UUID) map[string]string {
	return map[string]string{
		MetadataKeyUserID: userID.String(),
		MetadataKeyAppID:  s.cfg.AppID,
	}
}
