package repository

import (
	"context"

	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() settingsdomain.Repository {
	return &repo{}
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*settingsdomain.Settings, error) {
	var s settingsdomain.Settings
	err := db.WithContext(ctx).Raw(
		`SELECT id, rate_percent, eligibility_days, reward_percent,
		 reward_duration_months, is_active, created_at, updated_at
		 FROM commission_settings WHERE is_active = ? LIMIT 1`,
		true,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) DeactivateAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_settings SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE is_active = ?`,
		false,
		true,
	).Error
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *settingsdomain.Settings) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commission_settings (
			id, rate_percent, eligibility_days, reward_percent,
			reward_duration_months, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.RatePercent,
		s.EligibilityDays,
		s.RewardPercent,
		s.RewardDurationMonths,
		s.IsActive,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}
