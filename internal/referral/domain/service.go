package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrSelfReferral     = errors.New("self-referral is forbidden")
	ErrAlreadyReferred  = errors.New("user already has a referral record")
	ErrReferralNotFound = errors.New("referral record not found")
)

type RegisterRequest struct {
	Code           string
	ReferredUserID snowflake.ID
	ReferredEmail  string
}

type MarkSubscribedRequest struct {
	ReferredUserID snowflake.ID
	PaymentAmount  int64
	Currency       string
}

type Service interface {
	// Register validates the code, rejects self- and duplicate referrals,
	// and records a signed_up referral plus the referrer's counter bump.
	Register(ctx context.Context, req RegisterRequest) (*Referral, error)

	// MarkSubscribed transitions the referred user's record to subscribed,
	// stamps the reward eligibility date from the active settings, and opens
	// the pending commission. Both effects commit together. Redelivery for a
	// record already past signed_up is a no-op.
	MarkSubscribed(ctx context.Context, req MarkSubscribedRequest) (*Referral, error)

	ListByReferrer(ctx context.Context, userID snowflake.ID) ([]Referral, error)
	GetByReferredUser(ctx context.Context, userID snowflake.ID) (*Referral, error)

	// Sweep hooks. Each is status-guarded and safe to repeat.
	ListRewardDue(ctx context.Context, now time.Time, limit int) ([]Referral, error)
	MarkEligible(ctx context.Context, id snowflake.ID) error
	Expire(ctx context.Context, id snowflake.ID) error
	MarkRewarded(ctx context.Context, id snowflake.ID, referrerUserID snowflake.ID, couponRef string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, r *Referral) error
	FindByReferredUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Referral, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Referral, error)
	ListByReferrer(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Referral, error)
	ListRewardDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Referral, error)

	MarkSubscribed(ctx context.Context, db *gorm.DB, id snowflake.ID, subscribedAt, rewardEligibleAt time.Time) (bool, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, now time.Time) (bool, error)
	MarkRewarded(ctx context.Context, db *gorm.DB, id snowflake.ID, couponRef string, now time.Time) (bool, error)
}
