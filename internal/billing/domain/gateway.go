// Package domain defines the boundary to the billing provider. The referral
// core only ever needs four questions answered; everything else about the
// provider stays behind this interface.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrCustomerNotFound = errors.New("billing customer not found")
	ErrProviderFailure  = errors.New("billing provider request failed")
)

type Gateway interface {
	// IsSubscribed reports whether the user currently holds a paid plan.
	IsSubscribed(ctx context.Context, userID snowflake.ID) (bool, error)

	// FindCustomerByEmail resolves a billing customer id from an email
	// address. Returns ErrCustomerNotFound when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)

	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)

	// ApplyDiscount creates a percent-off coupon lasting durationMonths and
	// attaches it to the customer's upcoming invoices. Returns the provider
	// coupon reference.
	ApplyDiscount(ctx context.Context, customerID string, percent float64, durationMonths int) (string, error)
}
