package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  settingsdomain.Repository
	cfg   config.ReferralConfig
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  settingsdomain.Repository
	Cfg   config.Config
}

func NewService(p ServiceParam) settingsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cfg:   p.Cfg.Referral,
	}
}

func (s *Service) Active(ctx context.Context) (settingsdomain.Settings, error) {
	row, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return settingsdomain.Settings{}, err
	}
	if row != nil {
		return *row, nil
	}
	return settingsdomain.Settings{
		RatePercent:          s.cfg.DefaultRatePercent,
		EligibilityDays:      s.cfg.DefaultEligibleDays,
		RewardPercent:        s.cfg.RewardPercent,
		RewardDurationMonths: s.cfg.RewardDurationMonths,
		IsActive:             true,
	}, nil
}

func (s *Service) Update(ctx context.Context, req settingsdomain.UpdateRequest) (settingsdomain.Settings, error) {
	if req.RatePercent < 0 || req.RatePercent > 100 {
		return settingsdomain.Settings{}, settingsdomain.ErrInvalidRate
	}
	if req.EligibilityDays < 1 || req.EligibilityDays > 365 {
		return settingsdomain.Settings{}, settingsdomain.ErrInvalidEligibilityDays
	}
	if req.RewardPercent < 0 || req.RewardPercent > 100 {
		return settingsdomain.Settings{}, settingsdomain.ErrInvalidRewardPercent
	}

	now := s.clock.Now()
	row := settingsdomain.Settings{
		ID:                   s.genID.Generate(),
		RatePercent:          req.RatePercent,
		EligibilityDays:      req.EligibilityDays,
		RewardPercent:        req.RewardPercent,
		RewardDurationMonths: req.RewardDurationMonths,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if row.RewardDurationMonths <= 0 {
		row.RewardDurationMonths = 1
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateAll(ctx, tx); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &row)
	})
	if err != nil {
		return settingsdomain.Settings{}, err
	}

	s.log.Info("commission settings updated",
		zap.Float64("rate_percent", row.RatePercent),
		zap.Int("eligibility_days", row.EligibilityDays))
	return row, nil
}
