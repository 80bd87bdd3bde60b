package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() referraldomain.Repository {
	return &repo{}
}

const referralColumns = `id, referrer_user_id, referred_user_id, code, referred_email,
 status, signed_up_at, subscribed_at, reward_eligible_at, reward_applied,
 reward_applied_at, coupon_ref, metadata, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ref *referraldomain.Referral) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referrals (
			id, referrer_user_id, referred_user_id, code, referred_email,
			status, signed_up_at, reward_applied, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.ID,
		ref.ReferrerUserID,
		ref.ReferredUserID,
		ref.Code,
		ref.ReferredEmail,
		ref.Status,
		ref.SignedUpAt,
		ref.RewardApplied,
		ref.Metadata,
		ref.CreatedAt,
		ref.UpdatedAt,
	).Error
}

func (r *repo) FindByReferredUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*referraldomain.Referral, error) {
	var ref referraldomain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT `+referralColumns+` FROM referrals WHERE referred_user_id = ?`,
		userID,
	).Scan(&ref).Error
	if err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		return nil, nil
	}
	return &ref, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*referraldomain.Referral, error) {
	var ref referraldomain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT `+referralColumns+` FROM referrals WHERE id = ?`,
		id,
	).Scan(&ref).Error
	if err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		return nil, nil
	}
	return &ref, nil
}

func (r *repo) ListByReferrer(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]referraldomain.Referral, error) {
	var items []referraldomain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT `+referralColumns+` FROM referrals
		 WHERE referrer_user_id = ? ORDER BY created_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListRewardDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]referraldomain.Referral, error) {
	if limit <= 0 {
		limit = 500
	}
	var items []referraldomain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT `+referralColumns+` FROM referrals
		 WHERE status IN (?, ?) AND reward_applied = ? AND reward_eligible_at <= ?
		 ORDER BY reward_eligible_at ASC LIMIT ?`,
		referraldomain.StatusSubscribed,
		referraldomain.StatusEligible,
		false,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSubscribed(ctx context.Context, db *gorm.DB, id snowflake.ID, subscribedAt, rewardEligibleAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE referrals
		 SET status = ?, subscribed_at = ?, reward_eligible_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		referraldomain.StatusSubscribed,
		subscribedAt,
		rewardEligibleAt,
		subscribedAt,
		id,
		referraldomain.StatusSignedUp,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []referraldomain.Status, to referraldomain.Status, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE referrals SET status = ?, updated_at = ? WHERE id = ? AND status IN ?`,
		to,
		now,
		id,
		from,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) MarkRewarded(ctx context.Context, db *gorm.DB, id snowflake.ID, couponRef string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE referrals
		 SET status = ?, reward_applied = ?, reward_applied_at = ?,
		     coupon_ref = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?) AND reward_applied = ?`,
		referraldomain.StatusRewarded,
		true,
		now,
		couponRef,
		now,
		id,
		referraldomain.StatusSubscribed,
		referraldomain.StatusEligible,
		false,
	)
	return res.RowsAffected > 0, res.Error
}
