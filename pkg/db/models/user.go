package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/traderssquare/storefront-backend/pkg/db/types"
	"github.com/traderssquare/storefront-backend/pkg/enums"
)

// User carries the identity, cart, and billing state for a storefront account.
//
// StripeCustomerID is written once on first successful checkout and never
// changed afterwards. IsPlusMember is derived from SubscriptionStatus and must
// not be written independently of it.
type User struct {
	ID                 uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string                    `gorm:"type:text;not null;uniqueIndex"`
	Name               string                    `gorm:"column:name;not null"`
	Cart               dbtypes.Cart              `gorm:"column:cart;type:jsonb;not null;default:'{}'"`
	StripeCustomerID   *string                   `gorm:"column:stripe_customer_id;uniqueIndex"`
	SubscriptionID     *string                   `gorm:"column:subscription_id;uniqueIndex"`
	SubscriptionStatus *enums.SubscriptionStatus `gorm:"column:subscription_status;type:text"`
	IsPlusMember       bool                      `gorm:"column:is_plus_member;not null;default:false"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
