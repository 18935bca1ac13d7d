package stripewebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/db/models"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
)

// resolveInput carries every identity hint an event offers, strongest first.
type resolveInput struct {
	MetadataUserID string
	SubscriptionID string
	CustomerID     string
	Email          string
}

// resolveUser maps an event onto a local account. Hints are tried in order of
// trust: our own metadata, then the stored subscription and customer
// references, then the checkout email. Exhausting all of them is a
// reconciliation failure so the processor redelivers the event.
func (s *Service) resolveUser(ctx context.Context, repo users.Repository, in resolveInput) (*models.User, error) {
	if in.MetadataUserID != "" {
		userID, err := uuid.Parse(in.MetadataUserID)
		if err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "metadata_user_id", in.MetadataUserID), "metadata user id is not a uuid")
		} else {
			user, err := findOrNil(repo.FindByID(ctx, userID))
			if err != nil {
				return nil, err
			}
			if user != nil {
				return user, nil
			}
		}
	}

	if in.SubscriptionID != "" {
		user, err := findOrNil(repo.FindBySubscriptionID(ctx, in.SubscriptionID))
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	if in.CustomerID != "" {
		user, err := findOrNil(repo.FindByStripeCustomerID(ctx, in.CustomerID))
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	if in.Email != "" {
		user, err := findOrNil(repo.FindByEmail(ctx, in.Email))
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	return nil, pkgerrors.New(pkgerrors.CodeReconciliation, "no user matches the event").
		WithDetails(map[string]string{
			"customerId":     in.CustomerID,
			"subscriptionId": in.SubscriptionID,
		})
}

// findOrNil folds a missing row into a nil user so resolution moves on to the
// next hint; any other lookup failure aborts.
func findOrNil(user *models.User, err error) (*models.User, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return user, nil
}

// backfillCustomerRef records the processor customer id the first time a user
// is seen with one. A stored reference is never overwritten; a conflicting id
// on a later event is counted and logged instead, since silently rebinding the
// user to another customer would corrupt future resolution.
func (s *Service) backfillCustomerRef(ctx context.Context, repo users.Repository, user *models.User, customerID string) error {
	if customerID == "" {
		return nil
	}

	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		if err := repo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeReconciliation, err, "backfill customer reference")
		}
		user.StripeCustomerID = &customerID
		s.logger.Info(s.logger.WithField(ctx, "customer_id", customerID), "customer reference backfilled")
		return nil
	}

	if *user.StripeCustomerID != customerID {
		s.metrics.IncCustomerMismatch()
		s.logger.Error(s.logger.WithFields(ctx, map[string]any{
			"stored_customer_id": *user.StripeCustomerID,
			"event_customer_id":  customerID,
			"user_id":            user.ID.String(),
		}), "event customer does not match stored customer reference", nil)
	}
	return nil
}
