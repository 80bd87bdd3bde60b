// Package domain contains the local mirror of billing subscription state,
// fed by provider webhooks. Sweeps consult this mirror instead of calling the
// provider per row.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID       `gorm:"not null;uniqueIndex" json:"user_id"`
	Email            string             `gorm:"type:text;not null;default:''" json:"email,omitempty"`
	StripeCustomerID string             `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	Plan             string             `gorm:"type:text;not null;default:''" json:"plan"`
	Status           SubscriptionStatus `gorm:"type:text;not null;default:'none'" json:"status"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
