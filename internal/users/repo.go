package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/traderssquare/storefront-backend/pkg/db/models"
	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	"github.com/traderssquare/storefront-backend/pkg/enums"
)

// Repository exposes user persistence, including the billing-state writes the
// payment reconciler performs. Every mutation sets absolute values so replayed
// webhook events converge on the same row state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateSubscriptionState(ctx context.Context, id uuid.UUID, subscriptionID *string, status *enums.SubscriptionStatus, isPlusMember bool) error
	UpdateCart(ctx context.Context, id uuid.UUID, cart dbtypes.Cart) error
	ClearCart(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetStripeCustomerID backfills the processor customer reference. Callers are
// responsible for the write-once rule; this only ever writes the given value.
func (r *repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}

func (r *repository) UpdateSubscriptionState(ctx context.Context, id uuid.UUID, subscriptionID *string, status *enums.SubscriptionStatus, isPlusMember bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subscription_id":     subscriptionID,
			"subscription_status": status,
			"is_plus_member":      isPlusMember,
		}).Error
}

func (r *repository) UpdateCart(ctx context.Context, id uuid.UUID, cart dbtypes.Cart) error {
	if cart == nil {
		cart = dbtypes.Cart{}
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("cart", cart).Error
}

func (r *repository) ClearCart(ctx context.Context, id uuid.UUID) error {
	return r.UpdateCart(ctx, id, dbtypes.Cart{})
}
