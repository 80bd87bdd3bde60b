package scheduler

import (
	"context"

	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const churnedReason = "referred user churned before eligibility"

type EligibilityResult struct {
	Processed int `json:"processed"`
	Promoted  int `json:"promoted"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// EligibilitySweepJob settles every pending commission whose waiting period
// has elapsed: promoted to available while the referred user still pays,
// cancelled otherwise. Rows fail independently; one bad row never aborts the
// pass.
func (s *Scheduler) EligibilitySweepJob(ctx context.Context) (EligibilityResult, error) {
	now := s.clock.Now()
	run := s.startJobRun(ctx, "eligibility_sweep")
	timer := s.metrics.SweepDuration.WithLabelValues("eligibility_sweep")
	start := now

	var res EligibilityResult
	due, err := s.commissionSvc.ListDue(ctx, now, sweepBatchSize)
	if err != nil {
		s.finishJobRun(ctx, run, 0, 0, nil, err)
		return res, err
	}

	for _, txn := range due {
		if err := s.settleTransaction(ctx, txn, &res); err != nil {
			res.Failed++
			s.metrics.SweepOutcomes.WithLabelValues("eligibility_sweep", "failed").Inc()
			s.log.Warn("eligibility sweep row failed",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("user_id", txn.UserID.String()),
				zap.Error(err))
			continue
		}
		res.Processed++
	}

	timer.Observe(s.clock.Now().Sub(start).Seconds())
	s.finishJobRun(ctx, run, res.Processed, res.Failed, datatypes.JSONMap{
		"promoted":  res.Promoted,
		"cancelled": res.Cancelled,
	}, nil)

	s.log.Info("eligibility sweep completed",
		zap.Int("processed", res.Processed),
		zap.Int("promoted", res.Promoted),
		zap.Int("cancelled", res.Cancelled),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Scheduler) settleTransaction(ctx context.Context, txn commissiondomain.Transaction, res *EligibilityResult) error {
	subscribed, err := s.gateway.IsSubscribed(ctx, txn.ReferredUserID)
	if err != nil {
		return err
	}

	if !subscribed {
		if err := s.commissionSvc.Cancel(ctx, txn.ID, churnedReason); err != nil {
			return err
		}
		if txn.ReferralID != 0 {
			if err := s.referralSvc.Expire(ctx, txn.ReferralID); err != nil {
				return err
			}
		}
		res.Cancelled++
		s.metrics.SweepOutcomes.WithLabelValues("eligibility_sweep", "cancelled").Inc()
		return nil
	}

	if err := s.commissionSvc.Promote(ctx, txn.ID, s.clock.Now()); err != nil {
		return err
	}
	if txn.ReferralID != 0 {
		if err := s.referralSvc.MarkEligible(ctx, txn.ReferralID); err != nil {
			return err
		}
	}
	res.Promoted++
	s.metrics.SweepOutcomes.WithLabelValues("eligibility_sweep", "promoted").Inc()
	return nil
}
