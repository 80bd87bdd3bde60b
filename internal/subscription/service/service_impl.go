package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Upsert(ctx context.Context, req subscriptiondomain.UpsertRequest) (*subscriptiondomain.Subscription, error) {
	now := s.clock.Now()
	sub := &subscriptiondomain.Subscription{
		ID:               s.genID.Generate(),
		UserID:           req.UserID,
		Email:            req.Email,
		StripeCustomerID: req.StripeCustomerID,
		Plan:             req.Plan,
		Status:           req.Status,
		CurrentPeriodEnd: req.CurrentPeriodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Upsert(ctx, s.db, sub); err != nil {
		return nil, err
	}
	s.log.Info("subscription state updated",
		zap.String("user_id", req.UserID.String()),
		zap.String("status", string(req.Status)))
	return sub, nil
}

func (s *Service) Get(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.repo.FindByUserID(ctx, s.db, userID)
}

func (s *Service) IsSubscribed(ctx context.Context, userID snowflake.ID) (bool, error) {
	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return false, nil
	}
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(s.clock.Now()) {
		return false, nil
	}
	return true, nil
}
