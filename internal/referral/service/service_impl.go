package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	codedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	pkgdb "github.com/lunaglowlabs/lunaglow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  referraldomain.Repository

	codeSvc       codedomain.Service
	codeRepo      codedomain.Repository
	commissionSvc commissiondomain.Service
	settingsSvc   settingsdomain.Service
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  referraldomain.Repository

	CodeSvc       codedomain.Service
	CodeRepo      codedomain.Repository
	CommissionSvc commissiondomain.Service
	SettingsSvc   settingsdomain.Service
}

func NewService(p ServiceParam) referraldomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("referral.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		codeSvc:       p.CodeSvc,
		codeRepo:      p.CodeRepo,
		commissionSvc: p.CommissionSvc,
		settingsSvc:   p.SettingsSvc,
	}
}

func (s *Service) Register(ctx context.Context, req referraldomain.RegisterRequest) (*referraldomain.Referral, error) {
	if req.ReferredUserID == 0 {
		return nil, codedomain.ErrInvalidUser
	}

	code, err := s.codeSvc.Resolve(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if code.UserID == req.ReferredUserID {
		return nil, referraldomain.ErrSelfReferral
	}

	existing, err := s.repo.FindByReferredUserID(ctx, s.db, req.ReferredUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, referraldomain.ErrAlreadyReferred
	}

	now := s.clock.Now()
	ref := &referraldomain.Referral{
		ID:             s.genID.Generate(),
		ReferrerUserID: code.UserID,
		ReferredUserID: req.ReferredUserID,
		Code:           code.Code,
		ReferredEmail:  strings.ToLower(strings.TrimSpace(req.ReferredEmail)),
		Status:         referraldomain.StatusSignedUp,
		SignedUpAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, ref); err != nil {
			return err
		}
		return s.codeRepo.IncrementTotalReferrals(ctx, tx, code.UserID)
	})
	if err != nil {
		// The unique index on referred_user_id is the real duplicate guard;
		// the pre-check above only gives a friendlier fast path.
		if pkgdb.IsUniqueViolation(err) {
			return nil, referraldomain.ErrAlreadyReferred
		}
		return nil, err
	}

	s.log.Info("referral registered",
		zap.String("referrer_user_id", code.UserID.String()),
		zap.String("referred_user_id", req.ReferredUserID.String()),
		zap.String("code", code.Code))
	return ref, nil
}

func (s *Service) MarkSubscribed(ctx context.Context, req referraldomain.MarkSubscribedRequest) (*referraldomain.Referral, error) {
	ref, err := s.repo.FindByReferredUserID(ctx, s.db, req.ReferredUserID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, referraldomain.ErrReferralNotFound
	}
	if ref.Status != referraldomain.StatusSignedUp {
		// Replayed webhook for an already-processed subscription.
		return ref, nil
	}

	active, err := s.settingsSvc.Active(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	eligibleAt := now.AddDate(0, 0, active.EligibilityDays)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.MarkSubscribed(ctx, tx, ref.ID, now, eligibleAt)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		_, err = s.commissionSvc.Open(ctx, tx, commissiondomain.OpenRequest{
			UserID:          ref.ReferrerUserID,
			ReferralID:      ref.ID,
			ReferredUserID:  ref.ReferredUserID,
			PaymentAmount:   req.PaymentAmount,
			Currency:        req.Currency,
			RatePercent:     active.RatePercent,
			EligibilityDays: active.EligibilityDays,
			Now:             now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ref.Status = referraldomain.StatusSubscribed
	ref.SubscribedAt = &now
	ref.RewardEligibleAt = &eligibleAt

	s.log.Info("referral subscribed",
		zap.String("referred_user_id", req.ReferredUserID.String()),
		zap.Time("reward_eligible_at", eligibleAt))
	return ref, nil
}

func (s *Service) ListByReferrer(ctx context.Context, userID snowflake.ID) ([]referraldomain.Referral, error) {
	return s.repo.ListByReferrer(ctx, s.db, userID)
}

func (s *Service) GetByReferredUser(ctx context.Context, userID snowflake.ID) (*referraldomain.Referral, error) {
	return s.repo.FindByReferredUserID(ctx, s.db, userID)
}

func (s *Service) ListRewardDue(ctx context.Context, now time.Time, limit int) ([]referraldomain.Referral, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.repo.ListRewardDue(ctx, s.db, now, limit)
}

func (s *Service) MarkEligible(ctx context.Context, id snowflake.ID) error {
	_, err := s.repo.TransitionStatus(ctx, s.db, id,
		[]referraldomain.Status{referraldomain.StatusSubscribed},
		referraldomain.StatusEligible,
		s.clock.Now(),
	)
	return err
}

func (s *Service) Expire(ctx context.Context, id snowflake.ID) error {
	_, err := s.repo.TransitionStatus(ctx, s.db, id,
		[]referraldomain.Status{referraldomain.StatusSignedUp, referraldomain.StatusSubscribed, referraldomain.StatusEligible},
		referraldomain.StatusExpired,
		s.clock.Now(),
	)
	return err
}

func (s *Service) MarkRewarded(ctx context.Context, id snowflake.ID, referrerUserID snowflake.ID, couponRef string) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.MarkRewarded(ctx, tx, id, couponRef, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.codeRepo.IncrementSuccessfulReferrals(ctx, tx, referrerUserID)
	})
}
