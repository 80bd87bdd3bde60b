// Package domain contains the commission ledger models. Amounts are integer
// minor units in the transaction currency; the rate is snapshotted at creation
// and never recomputed.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusAvailable TransactionStatus = "available"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID      `gorm:"not null;index" json:"user_id"`
	ReferralID      snowflake.ID      `gorm:"not null;uniqueIndex:uq_commission_referral" json:"referral_id"`
	ReferredUserID  snowflake.ID      `gorm:"not null;uniqueIndex:uq_commission_referral" json:"referred_user_id"`
	Amount          int64             `gorm:"not null" json:"amount"`
	Currency        string            `gorm:"type:text;not null" json:"currency"`
	Status          TransactionStatus `gorm:"type:text;not null;default:'pending';index:idx_commission_due" json:"status"`
	PaymentAmount   int64             `gorm:"not null" json:"payment_amount"`
	RatePercent     float64           `gorm:"not null" json:"rate_percent"`
	EligibleAt      time.Time         `gorm:"not null;index:idx_commission_due" json:"eligible_at"`
	AvailableAt     *time.Time        `json:"available_at,omitempty"`
	CancelledReason string            `gorm:"type:text" json:"cancelled_reason,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Transaction) TableName() string { return "commission_transactions" }

// Balance is the per-referrer running aggregate over transactions. It is only
// ever adjusted together with a transaction status change and never goes
// negative.
type Balance struct {
	UserID           snowflake.ID `gorm:"primaryKey" json:"user_id"`
	PendingBalance   int64        `gorm:"not null;default:0" json:"pending_balance"`
	AvailableBalance int64        `gorm:"not null;default:0" json:"available_balance"`
	TotalEarned      int64        `gorm:"not null;default:0" json:"total_earned"`
	TotalWithdrawn   int64        `gorm:"not null;default:0" json:"total_withdrawn"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Balance) TableName() string { return "commission_balances" }
