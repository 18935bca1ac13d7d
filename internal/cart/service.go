package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/users"
	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

// ServiceParams carries the dependencies for the cart service.
type ServiceParams struct {
	Users  users.Repository
	Logger *logger.Logger
}

// Service reads and replaces a user's shopping cart.
type Service struct {
	users  users.Repository
	logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service requires a users repository")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service requires a logger")
	}
	return &Service{users: params.Users, logger: params.Logger}, nil
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (dbtypes.Cart, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if user.Cart == nil {
		return dbtypes.Cart{}, nil
	}
	return user.Cart, nil
}

// Replace swaps the stored cart for the provided one in a single write. The
// incoming cart is the full desired state, not a delta.
func (s *Service) Replace(ctx context.Context, userID uuid.UUID, cart dbtypes.Cart) (dbtypes.Cart, error) {
	if cart == nil {
		cart = dbtypes.Cart{}
	}
	for productID, qty := range cart {
		if productID == "" || qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart items need a product id and a positive quantity")
		}
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}

	if err := s.users.UpdateCart(ctx, userID, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replacing cart")
	}

	s.logger.Info(s.logger.WithField(ctx, "items", len(cart)), "cart replaced")
	return cart, nil
}
