// Package scheduler runs the periodic referral sweeps. Each job is a pure
// pass over the store: it reads what is due at the moment it runs, applies
// status-guarded transitions, and is safe to re-run or overlap.
package scheduler

import (
	"context"
	"time"

	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchSize = 500

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.SchedulerConfig

	commissionSvc commissiondomain.Service
	referralSvc   referraldomain.Service
	settingsSvc   settingsdomain.Service
	subscriptions subscriptiondomain.Service
	gateway       billingdomain.Gateway
	metrics       *Metrics
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Cfg   config.Config

	CommissionSvc commissiondomain.Service
	ReferralSvc   referraldomain.Service
	SettingsSvc   settingsdomain.Service
	Subscriptions subscriptiondomain.Service
	Gateway       billingdomain.Gateway
	Metrics       *Metrics
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler"),
		clock:         p.Clock,
		cfg:           p.Cfg.Scheduler,
		commissionSvc: p.CommissionSvc,
		referralSvc:   p.ReferralSvc,
		settingsSvc:   p.SettingsSvc,
		subscriptions: p.Subscriptions,
		gateway:       p.Gateway,
		metrics:       p.Metrics,
	}
}

// RunForever ticks both sweeps until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	eligibility := time.NewTicker(s.cfg.EligibilityInterval)
	reward := time.NewTicker(s.cfg.RewardInterval)
	defer eligibility.Stop()
	defer reward.Stop()

	s.log.Info("scheduler started",
		zap.Duration("eligibility_interval", s.cfg.EligibilityInterval),
		zap.Duration("reward_interval", s.cfg.RewardInterval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-eligibility.C:
			if _, err := s.EligibilitySweepJob(ctx); err != nil {
				s.log.Error("eligibility sweep failed", zap.Error(err))
			}
		case <-reward.C:
			if _, err := s.RewardSweepJob(ctx); err != nil {
				s.log.Error("reward sweep failed", zap.Error(err))
			}
		}
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(NewMetrics),
	fx.Provide(New),
)
