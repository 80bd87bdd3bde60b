package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidCode = errors.New("referral code not found")
	ErrInvalidUser = errors.New("invalid user id")
)

type Service interface {
	// GetOrCreate returns the user's code, lazily issuing one on first call.
	// Repeat calls return the same row unchanged.
	GetOrCreate(ctx context.Context, userID snowflake.ID) (*ReferralCode, error)
	// Resolve looks a code up case-insensitively and returns its owner.
	Resolve(ctx context.Context, code string) (*ReferralCode, error)
}

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*ReferralCode, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*ReferralCode, error)
	Insert(ctx context.Context, db *gorm.DB, rc *ReferralCode) error
	IncrementTotalReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
	IncrementSuccessfulReferrals(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
}
