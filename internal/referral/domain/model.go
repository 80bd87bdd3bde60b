// Package domain contains the referral record model and its lifecycle.
//
// Status only ever moves forward:
//
//	signed_up -> subscribed -> eligible -> rewarded
//	signed_up | subscribed | eligible -> expired
//
// Every transition is guarded on the current status at the storage layer, so
// replayed webhooks and overlapping sweeps degrade to no-ops.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusSignedUp   Status = "signed_up"
	StatusSubscribed Status = "subscribed"
	StatusEligible   Status = "eligible"
	StatusRewarded   Status = "rewarded"
	StatusExpired    Status = "expired"
)

type Referral struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	ReferrerUserID   snowflake.ID      `gorm:"not null;index" json:"referrer_user_id"`
	ReferredUserID   snowflake.ID      `gorm:"not null;uniqueIndex" json:"referred_user_id"`
	Code             string            `gorm:"type:text;not null" json:"code"`
	ReferredEmail    string            `gorm:"type:text;not null;default:''" json:"referred_email"`
	Status           Status            `gorm:"type:text;not null;default:'signed_up'" json:"status"`
	SignedUpAt       time.Time         `gorm:"not null" json:"signed_up_at"`
	SubscribedAt     *time.Time        `json:"subscribed_at,omitempty"`
	RewardEligibleAt *time.Time        `json:"reward_eligible_at,omitempty"`
	RewardApplied    bool              `gorm:"not null;default:false" json:"reward_applied"`
	RewardAppliedAt  *time.Time        `json:"reward_applied_at,omitempty"`
	CouponRef        string            `gorm:"type:text" json:"coupon_ref,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }
