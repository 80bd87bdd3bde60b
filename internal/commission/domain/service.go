package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount      = errors.New("payment amount must be positive")
	ErrInvalidRate        = errors.New("rate_percent must be within [0,100]")
	ErrTransactionNotDue  = errors.New("transaction is not pending")
	ErrTransactionMissing = errors.New("commission transaction not found")
)

type OpenRequest struct {
	UserID          snowflake.ID
	ReferralID      snowflake.ID
	ReferredUserID  snowflake.ID
	PaymentAmount   int64
	Currency        string
	RatePercent     float64
	EligibilityDays int
	Now             time.Time
}

type Service interface {
	// Open snapshots the rate into a pending transaction and bumps the
	// referrer's pending balance. It runs against the supplied handle so a
	// caller can fold it into a wider transaction. Opening twice for the
	// same referral returns the existing row.
	Open(ctx context.Context, db *gorm.DB, req OpenRequest) (*Transaction, error)

	// Promote moves a pending transaction to available and shifts its amount
	// from the pending to the available balance. A transaction some other
	// sweep already moved out of pending is left alone.
	Promote(ctx context.Context, txnID snowflake.ID, now time.Time) error

	// Cancel voids a pending transaction and releases its amount from the
	// pending balance.
	Cancel(ctx context.Context, txnID snowflake.ID, reason string) error

	GetBalance(ctx context.Context, userID snowflake.ID) (Balance, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Transaction, error)
}

type Repository interface {
	InsertTransaction(ctx context.Context, db *gorm.DB, t *Transaction) error
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByReferral(ctx context.Context, db *gorm.DB, referralID, referredUserID snowflake.ID) (*Transaction, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Transaction, error)

	// MarkAvailable and MarkCancelled are guarded on status = 'pending' and
	// report whether the row was actually moved.
	MarkAvailable(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (bool, error)

	UpsertBalanceAddPending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error
	ReleasePending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error
	SettlePending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error
	GetBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Balance, error)
}
