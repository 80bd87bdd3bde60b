package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	codedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() codedomain.Repository {
	return &repo{}
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*codedomain.ReferralCode, error) {
	var rc codedomain.ReferralCode
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, code, total_referrals, successful_referrals,
		 rewards_earned, created_at, updated_at
		 FROM referral_codes WHERE user_id = ?`,
		userID,
	).Scan(&rc).Error
	if err != nil {
		return nil, err
	}
	if rc.ID == 0 {
		return nil, nil
	}
	return &rc, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*codedomain.ReferralCode, error) {
	var rc codedomain.ReferralCode
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, code, total_referrals, successful_referrals,
		 rewards_earned, created_at, updated_at
		 FROM referral_codes WHERE UPPER(code) = ? LIMIT 1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&rc).Error
	if err != nil {
		return nil, err
	}
	if rc.ID == 0 {
		return nil, nil
	}
	return &rc, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rc *codedomain.ReferralCode) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_codes (
			id, user_id, code, total_referrals, successful_referrals,
			rewards_earned, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID,
		rc.UserID,
		rc.Code,
		rc.TotalReferrals,
		rc.SuccessfulReferrals,
		rc.RewardsEarned,
		rc.CreatedAt,
		rc.UpdatedAt,
	).Error
}

func (r *repo) IncrementTotalReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_codes
		 SET total_referrals = total_referrals + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		userID,
	).Error
}

func (r *repo) IncrementSuccessfulReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_codes
		 SET successful_referrals = successful_referrals + 1,
		     rewards_earned = rewards_earned + 1,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		userID,
	).Error
}
