package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() commissiondomain.Repository {
	return &repo{}
}

const transactionColumns = `id, user_id, referral_id, referred_user_id, amount, currency,
 status, payment_amount, rate_percent, eligible_at, available_at,
 cancelled_reason, created_at, updated_at`

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, t *commissiondomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_transactions (
			id, user_id, referral_id, referred_user_id, amount, currency,
			status, payment_amount, rate_percent, eligible_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.ReferralID,
		t.ReferredUserID,
		t.Amount,
		t.Currency,
		t.Status,
		t.PaymentAmount,
		t.RatePercent,
		t.EligibleAt,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*commissiondomain.Transaction, error) {
	var t commissiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM commission_transactions WHERE id = ?`,
		id,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) FindByReferral(ctx context.Context, db *gorm.DB, referralID, referredUserID snowflake.ID) (*commissiondomain.Transaction, error) {
	var t commissiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM commission_transactions
		 WHERE referral_id = ? AND referred_user_id = ? LIMIT 1`,
		referralID,
		referredUserID,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]commissiondomain.Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	var items []commissiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM commission_transactions
		 WHERE status = ? AND eligible_at <= ?
		 ORDER BY eligible_at ASC LIMIT ?`,
		commissiondomain.TransactionStatusPending,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkAvailable(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE commission_transactions
		 SET status = ?, available_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		commissiondomain.TransactionStatusAvailable,
		now,
		now,
		id,
		commissiondomain.TransactionStatusPending,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE commission_transactions
		 SET status = ?, cancelled_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		commissiondomain.TransactionStatusCancelled,
		reason,
		now,
		id,
		commissiondomain.TransactionStatusPending,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) UpsertBalanceAddPending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_balances (
			user_id, pending_balance, available_balance, total_earned,
			total_withdrawn, created_at, updated_at
		) VALUES (?, ?, 0, 0, 0, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			pending_balance = commission_balances.pending_balance + ?,
			updated_at = ?`,
		userID,
		amount,
		now,
		now,
		amount,
		now,
	).Error
}

// ReleasePending removes a cancelled transaction's amount from the pending
// balance, clamped at zero. A shortfall means an earlier reconciliation gap,
// not a caller error.
func (r *repo) ReleasePending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_balances
		 SET pending_balance = CASE
				WHEN pending_balance > ? THEN pending_balance - ?
				ELSE 0
			END,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		now,
		userID,
	).Error
}

// SettlePending moves a promoted transaction's amount out of pending into
// available and cumulative earnings.
func (r *repo) SettlePending(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_balances
		 SET pending_balance = CASE
				WHEN pending_balance > ? THEN pending_balance - ?
				ELSE 0
			END,
		     available_balance = available_balance + ?,
		     total_earned = total_earned + ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		amount,
		amount,
		amount,
		amount,
		now,
		userID,
	).Error
}

func (r *repo) GetBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*commissiondomain.Balance, error) {
	var b commissiondomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, pending_balance, available_balance, total_earned,
		 total_withdrawn, created_at, updated_at
		 FROM commission_balances WHERE user_id = ?`,
		userID,
	).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.UserID == 0 {
		return nil, nil
	}
	return &b, nil
}
