package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/billing"
	"github.com/traderssquare/storefront-backend/internal/orders"
	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/enums"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
	"github.com/traderssquare/storefront-backend/pkg/metrics"
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Users             users.Repository
	Orders            orders.Repository
	StripeClient      subscriptionFetcher
	TransactionRunner txRunner
	AppID             string
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

// Service reconciles payment processor events against local membership and
// order state. Every handler writes absolute values inside one transaction,
// so redelivered or reordered events converge on the same rows.
type Service struct {
	users    users.Repository
	orders   orders.Repository
	stripe   subscriptionFetcher
	txRunner txRunner
	appID    string
	logger   *logger.Logger
	metrics  *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.AppID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "app id required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		users:    params.Users,
		orders:   params.Orders,
		stripe:   params.StripeClient,
		txRunner: params.TransactionRunner,
		appID:    params.AppID,
		logger:   params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logger.WithField(ctx, "event_type", string(event.Type))

	if err := s.dispatch(ctx, event); err != nil {
		s.metrics.IncFailed(string(event.Type))
		return err
	}
	s.metrics.IncProcessed(string(event.Type))
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		switch session.Mode {
		case stripe.CheckoutSessionModeSubscription:
			return s.handleSubscriptionCheckout(ctx, &session)
		case stripe.CheckoutSessionModePayment:
			return s.handleOneTimePayment(ctx, &session)
		default:
			s.logger.Info(ctx, fmt.Sprintf("ignoring checkout session mode %q", session.Mode))
			return nil
		}
	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &sub, false)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &sub, true)
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaid:
		return s.handleInvoiceOutcome(ctx, event, true)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoiceOutcome(ctx, event, false)
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		// Checkout-driven intents are reconciled off the completed-session event.
		return nil
	default:
		s.logger.Info(ctx, "ignoring unhandled event type")
		return nil
	}
}

// handleSubscriptionCheckout reconciles a completed subscription checkout. The
// session only proves that checkout finished, so the subscription itself is
// re-fetched from the processor and its current status wins.
func (s *Service) handleSubscriptionCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	subID := ""
	if session.Subscription != nil {
		subID = session.Subscription.ID
	}
	if subID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription checkout session carries no subscription id")
	}

	sub, err := s.stripe.GetSubscription(ctx, subID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	status, err := enums.ParseSubscriptionStatus(string(sub.Status))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription status")
	}
	member := status.GrantsMembership()

	in := resolveInput{
		MetadataUserID: session.Metadata[billing.MetadataKeyUserID],
		SubscriptionID: subID,
		CustomerID:     customerRef(session.Customer),
		Email:          sessionEmail(session),
	}
	if in.MetadataUserID == "" {
		in.MetadataUserID = sub.Metadata[billing.MetadataKeyUserID]
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		user, err := s.resolveUser(ctx, repo, in)
		if err != nil {
			return err
		}
		if err := s.backfillCustomerRef(ctx, repo, user, in.CustomerID); err != nil {
			return err
		}
		if err := repo.UpdateSubscriptionState(ctx, user.ID, &subID, &status, member); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "update subscription state")
		}
		return nil
	})
}

// syncSubscription applies a subscription lifecycle event. Deletion clears the
// subscription reference and revokes membership; every other transition stores
// the reported status and derives membership from it.
func (s *Service) syncSubscription(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	if sub == nil || sub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if appID := sub.Metadata[billing.MetadataKeyAppID]; appID != "" && appID != s.appID {
		s.logger.Info(ctx, "ignoring subscription owned by another application")
		return nil
	}

	var (
		subIDPtr *string
		status   enums.SubscriptionStatus
		member   bool
	)
	if deleted {
		status = enums.SubscriptionStatusCanceled
	} else {
		parsed, err := enums.ParseSubscriptionStatus(string(sub.Status))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription status")
		}
		status = parsed
		member = status.GrantsMembership()
		subIDPtr = &sub.ID
	}

	in := resolveInput{
		MetadataUserID: sub.Metadata[billing.MetadataKeyUserID],
		SubscriptionID: sub.ID,
		CustomerID:     customerRef(sub.Customer),
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		user, err := s.resolveUser(ctx, repo, in)
		if err != nil {
			return err
		}
		if !deleted {
			if err := s.backfillCustomerRef(ctx, repo, user, in.CustomerID); err != nil {
				return err
			}
		}
		if err := repo.UpdateSubscriptionState(ctx, user.ID, subIDPtr, &status, member); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "update subscription state")
		}
		return nil
	})
}

// handleInvoiceOutcome re-fetches the invoice's subscription and syncs its
// current status. The fresh fetch is authoritative, so a failed invoice whose
// subscription already recovered does not demote the member.
func (s *Service) handleInvoiceOutcome(ctx context.Context, event *stripe.Event, paid bool) error {
	subID := event.GetObjectValue("subscription")
	if subID == "" {
		// One-off invoices have no subscription to reconcile.
		s.logger.Info(ctx, "invoice event has no subscription reference")
		return nil
	}

	sub, err := s.stripe.GetSubscription(ctx, subID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}

	err = s.syncSubscription(ctx, sub, false)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeReconciliation {
		// The invoice is advisory. Redelivering it cannot mint the missing
		// user, and the subscription lifecycle events carry the same state.
		s.logger.Warn(ctx, "invoice event references no known user")
		return nil
	}
	if err != nil {
		return err
	}
	if paid {
		s.metrics.IncRenewal()
	}
	return nil
}

// handleOneTimePayment marks the session's orders paid and empties the payer's
// cart in one transaction. Sessions stamped with a different application id
// are acknowledged untouched.
func (s *Service) handleOneTimePayment(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Metadata[billing.MetadataKeyAppID] != s.appID {
		s.logger.Info(ctx, "ignoring payment session for another application")
		return nil
	}

	rawOrderIDs := session.Metadata[billing.MetadataKeyOrderIDs]
	if rawOrderIDs == "" {
		s.logger.Warn(ctx, "payment session carries no order ids")
		return nil
	}
	orderIDs, err := parseOrderIDs(rawOrderIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order ids")
	}
	if len(orderIDs) == 0 {
		s.logger.Warn(ctx, "payment session order ids metadata is empty")
		return nil
	}

	in := resolveInput{
		MetadataUserID: session.Metadata[billing.MetadataKeyUserID],
		CustomerID:     customerRef(session.Customer),
		Email:          sessionEmail(session),
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		user, err := s.resolveUser(ctx, usersRepo, in)
		if err != nil {
			return err
		}
		if err := s.backfillCustomerRef(ctx, usersRepo, user, in.CustomerID); err != nil {
			return err
		}

		for _, orderID := range orderIDs {
			if err := ordersRepo.MarkPaid(ctx, orderID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeReconciliation, "order referenced by payment session not found").
						WithDetails(map[string]string{"orderId": orderID.String()})
				}
				return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "mark order paid")
			}
		}

		if err := usersRepo.ClearCart(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "clear cart")
		}
		return nil
	})
}

func parseOrderIDs(raw string) ([]uuid.UUID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	var parseErr error
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			parseErr = multierr.Append(parseErr, fmt.Errorf("order id %q: %w", part, err))
			continue
		}
		ids = append(ids, id)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return ids, nil
}

func customerRef(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func sessionEmail(session *stripe.CheckoutSession) string {
	if session == nil || session.CustomerDetails == nil {
		return ""
	}
	return session.CustomerDetails.Email
}
