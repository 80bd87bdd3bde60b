package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidRate            = errors.New("rate_percent must be within [0,100]")
	ErrInvalidEligibilityDays = errors.New("eligibility_days must be within [1,365]")
	ErrInvalidRewardPercent   = errors.New("reward_percent must be within [0,100]")
)

type UpdateRequest struct {
	RatePercent          float64 `json:"rate_percent"`
	EligibilityDays      int     `json:"eligibility_days"`
	RewardPercent        float64 `json:"reward_percent"`
	RewardDurationMonths int     `json:"reward_duration_months"`
}

type Service interface {
	// Active returns the single active settings row, falling back to the
	// configured defaults when nothing has been persisted yet.
	Active(ctx context.Context) (Settings, error)
	Update(ctx context.Context, req UpdateRequest) (Settings, error)
}

type Repository interface {
	FindActive(ctx context.Context, db *gorm.DB) (*Settings, error)
	DeactivateAll(ctx context.Context, db *gorm.DB) error
	Insert(ctx context.Context, db *gorm.DB, s *Settings) error
}
