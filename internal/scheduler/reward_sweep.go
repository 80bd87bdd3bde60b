package scheduler

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type RewardResult struct {
	Processed int `json:"processed"`
	Rewarded  int `json:"rewarded"`
	Expired   int `json:"expired"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RewardSweepJob applies the referrer-side discount for every referral whose
// reward date has passed. A referral whose referred user churned is expired;
// a referrer we cannot currently resolve or who holds no paid plan is skipped
// and picked up again on the next pass.
func (s *Scheduler) RewardSweepJob(ctx context.Context) (RewardResult, error) {
	now := s.clock.Now()
	run := s.startJobRun(ctx, "reward_sweep")
	timer := s.metrics.SweepDuration.WithLabelValues("reward_sweep")
	start := now

	var res RewardResult
	due, err := s.referralSvc.ListRewardDue(ctx, now, sweepBatchSize)
	if err != nil {
		s.finishJobRun(ctx, run, 0, 0, nil, err)
		return res, err
	}

	settings, err := s.settingsSvc.Active(ctx)
	if err != nil {
		s.finishJobRun(ctx, run, 0, 0, nil, err)
		return res, err
	}

	for _, ref := range due {
		outcome, err := s.applyReward(ctx, ref, settings.RewardPercent, settings.RewardDurationMonths)
		if err != nil {
			res.Failed++
			s.metrics.SweepOutcomes.WithLabelValues("reward_sweep", "failed").Inc()
			s.log.Warn("reward sweep row failed",
				zap.String("referral_id", ref.ID.String()),
				zap.String("referrer_user_id", ref.ReferrerUserID.String()),
				zap.Error(err))
			continue
		}
		res.Processed++
		switch outcome {
		case rewardOutcomeRewarded:
			res.Rewarded++
		case rewardOutcomeExpired:
			res.Expired++
		case rewardOutcomeSkipped:
			res.Skipped++
		}
		s.metrics.SweepOutcomes.WithLabelValues("reward_sweep", string(outcome)).Inc()
	}

	timer.Observe(s.clock.Now().Sub(start).Seconds())
	s.finishJobRun(ctx, run, res.Processed, res.Failed, datatypes.JSONMap{
		"rewarded": res.Rewarded,
		"expired":  res.Expired,
		"skipped":  res.Skipped,
	}, nil)

	s.log.Info("reward sweep completed",
		zap.Int("processed", res.Processed),
		zap.Int("rewarded", res.Rewarded),
		zap.Int("expired", res.Expired),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

type rewardOutcome string

const (
	rewardOutcomeRewarded rewardOutcome = "rewarded"
	rewardOutcomeExpired  rewardOutcome = "expired"
	rewardOutcomeSkipped  rewardOutcome = "skipped"
)

func (s *Scheduler) applyReward(ctx context.Context, ref referraldomain.Referral, percent float64, durationMonths int) (rewardOutcome, error) {
	subscribed, err := s.gateway.IsSubscribed(ctx, ref.ReferredUserID)
	if err != nil {
		return "", err
	}
	if !subscribed {
		if err := s.referralSvc.Expire(ctx, ref.ID); err != nil {
			return "", err
		}
		return rewardOutcomeExpired, nil
	}

	customerID, err := s.resolveCustomer(ctx, ref.ReferrerUserID)
	if err != nil {
		if errors.Is(err, billingdomain.ErrCustomerNotFound) {
			// Referrer has no billing identity yet. Leave the referral due
			// and try again next pass.
			return rewardOutcomeSkipped, nil
		}
		return "", err
	}

	active, err := s.gateway.HasActiveSubscription(ctx, customerID)
	if err != nil {
		return "", err
	}
	if !active {
		return rewardOutcomeSkipped, nil
	}

	couponRef, err := s.gateway.ApplyDiscount(ctx, customerID, percent, durationMonths)
	if err != nil {
		return "", err
	}
	if err := s.referralSvc.MarkRewarded(ctx, ref.ID, ref.ReferrerUserID, couponRef); err != nil {
		return "", err
	}
	return rewardOutcomeRewarded, nil
}

// resolveCustomer maps a referrer to the billing provider's customer id,
// preferring the id the webhook mirror already holds over an email lookup.
func (s *Scheduler) resolveCustomer(ctx context.Context, userID snowflake.ID) (string, error) {
	sub, err := s.subscriptions.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", billingdomain.ErrCustomerNotFound
	}
	if sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}
	if sub.Email == "" {
		return "", billingdomain.ErrCustomerNotFound
	}
	return s.gateway.FindCustomerByEmail(ctx, sub.Email)
}
