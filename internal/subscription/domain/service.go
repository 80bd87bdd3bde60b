package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type UpsertRequest struct {
	UserID           snowflake.ID
	Email            string
	StripeCustomerID string
	Plan             string
	Status           SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*Subscription, error)
	Get(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	// IsSubscribed reports whether the user currently holds a paid plan.
	IsSubscribed(ctx context.Context, userID snowflake.ID) (bool, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, s *Subscription) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
}
