package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

// Upsert writes the event's view of the subscription. Sparse events (a
// cancellation carrying only the user id) must not blank identity fields a
// fuller event already recorded, so empty incoming values keep the stored
// ones.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, s *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, user_id, email, stripe_customer_id, plan, status,
			current_period_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE(NULLIF(?, ''), subscriptions.email),
			stripe_customer_id = COALESCE(NULLIF(?, ''), subscriptions.stripe_customer_id),
			plan = COALESCE(NULLIF(?, ''), subscriptions.plan),
			status = ?,
			current_period_end = COALESCE(?, subscriptions.current_period_end),
			updated_at = ?`,
		s.ID,
		s.UserID,
		s.Email,
		s.StripeCustomerID,
		s.Plan,
		s.Status,
		s.CurrentPeriodEnd,
		s.CreatedAt,
		s.UpdatedAt,
		s.Email,
		s.StripeCustomerID,
		s.Plan,
		s.Status,
		s.CurrentPeriodEnd,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var s subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, email, stripe_customer_id, plan, status,
		 current_period_end, created_at, updated_at
		 FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}
