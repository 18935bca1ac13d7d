package membership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/internal/users"
	"github.com/traderssquare/storefront-backend/pkg/enums"
	pkgerrors "github.com/traderssquare/storefront-backend/pkg/errors"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

// Status is the membership view returned to clients.
type Status struct {
	IsPlusMember       bool                      `json:"isPlusMember"`
	SubscriptionStatus *enums.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
}

type ServiceParams struct {
	Users  users.Repository
	Logger *logger.Logger
}

// Service answers membership checks off the reconciled user row.
type Service struct {
	users  users.Repository
	logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership service requires a users repository")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership service requires a logger")
	}
	return &Service{users: params.Users, logger: params.Logger}, nil
}

func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading membership")
	}

	return &Status{
		IsPlusMember:       user.IsPlusMember,
		SubscriptionStatus: user.SubscriptionStatus,
	}, nil
}
