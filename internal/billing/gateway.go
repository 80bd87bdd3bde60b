package billing

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
	"github.com/lunaglowlabs/lunaglow/internal/billing/stripe"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"go.uber.org/fx"
)

// gateway answers plan-status questions from the webhook-fed local mirror and
// delegates customer/coupon operations to Stripe.
type gateway struct {
	subs   subscriptiondomain.Service
	stripe *stripe.Client
}

func NewGateway(cfg config.Config, subs subscriptiondomain.Service) billingdomain.Gateway {
	return &gateway{
		subs:   subs,
		stripe: stripe.NewClient(cfg.Stripe.APIKey),
	}
}

func (g *gateway) IsSubscribed(ctx context.Context, userID snowflake.ID) (bool, error) {
	return g.subs.IsSubscribed(ctx, userID)
}

func (g *gateway) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	return g.stripe.FindCustomerByEmail(ctx, email)
}

func (g *gateway) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	return g.stripe.HasActiveSubscription(ctx, customerID)
}

func (g *gateway) ApplyDiscount(ctx context.Context, customerID string, percent float64, durationMonths int) (string, error) {
	return g.stripe.ApplyDiscount(ctx, customerID, percent, durationMonths)
}

var Module = fx.Module("billing.gateway",
	fx.Provide(NewGateway),
)
