package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"go.uber.org/zap"
)

const (
	eventPaymentSucceeded      = "payment.succeeded"
	eventSubscriptionCreated   = "subscription.created"
	eventSubscriptionUpdated   = "subscription.updated"
	eventSubscriptionCancelled = "subscription.cancelled"
)

type billingEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data billingEventData `json:"data"`
}

type billingEventData struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	CustomerID       string     `json:"customer_id"`
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
}

// BillingWebhook ingests billing provider events. Events are deduplicated on
// their provider id, so redelivery is always safe to acknowledge.
func (s *Server) BillingWebhook(c *gin.Context) {
	if !s.webhookAuthorized(c) {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var event billingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		AbortWithError(c, newValidationError("id", "missing_event_id", "event id and type are required"))
		return
	}

	fresh, err := s.recordEvent(c, event.ID, event.Type, body)
	if err != nil {
		s.log.Error("failed to record billing event", zap.String("event_id", event.ID), zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}
	if !fresh {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if err := s.processEvent(c, event); err != nil {
		s.log.Error("failed to process billing event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		s.releaseEvent(c, event.ID)
		AbortWithError(c, ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) webhookAuthorized(c *gin.Context) bool {
	secret := s.cfg.Stripe.WebhookSecret
	if secret == "" {
		return true
	}
	provided := strings.TrimSpace(c.GetHeader("X-Webhook-Secret"))
	return subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
}

// recordEvent inserts the event row and reports whether this delivery was the
// first one. The insert claims the id before any processing; releaseEvent
// gives the claim back when processing fails, so the provider's redelivery is
// treated as fresh instead of being swallowed as a duplicate.
func (s *Server) recordEvent(c *gin.Context, id, eventType string, payload []byte) (bool, error) {
	res := s.db.WithContext(c.Request.Context()).Exec(
		`INSERT INTO billing_events (id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id,
		eventType,
		string(payload),
		s.clock.Now(),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Server) releaseEvent(c *gin.Context, id string) {
	err := s.db.WithContext(c.Request.Context()).Exec(
		`DELETE FROM billing_events WHERE id = ?`, id,
	).Error
	if err != nil {
		s.log.Error("failed to release billing event", zap.String("event_id", id), zap.Error(err))
	}
}

func (s *Server) processEvent(c *gin.Context, event billingEvent) error {
	userID, err := snowflake.ParseString(strings.TrimSpace(event.Data.UserID))
	if err != nil || userID == 0 {
		// Events for users outside the referral program carry no user id;
		// nothing for us to do with them.
		s.log.Debug("billing event without user id", zap.String("event_id", event.ID))
		return nil
	}

	ctx := c.Request.Context()

	switch event.Type {
	case eventPaymentSucceeded:
		if err := s.upsertSubscription(c, userID, event.Data, subscriptiondomain.SubscriptionStatusActive); err != nil {
			return err
		}
		_, err := s.referralSvc.MarkSubscribed(ctx, referraldomain.MarkSubscribedRequest{
			ReferredUserID: userID,
			PaymentAmount:  event.Data.Amount,
			Currency:       event.Data.Currency,
		})
		if err != nil && !errors.Is(err, referraldomain.ErrReferralNotFound) {
			return err
		}
		return nil

	case eventSubscriptionCreated, eventSubscriptionUpdated:
		status := subscriptiondomain.SubscriptionStatus(event.Data.Status)
		if status == "" {
			status = subscriptiondomain.SubscriptionStatusActive
		}
		return s.upsertSubscription(c, userID, event.Data, status)

	case eventSubscriptionCancelled:
		return s.upsertSubscription(c, userID, event.Data, subscriptiondomain.SubscriptionStatusCanceled)

	default:
		s.log.Debug("ignoring billing event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return nil
	}
}

func (s *Server) upsertSubscription(c *gin.Context, userID snowflake.ID, data billingEventData, status subscriptiondomain.SubscriptionStatus) error {
	_, err := s.subscriptions.Upsert(c.Request.Context(), subscriptiondomain.UpsertRequest{
		UserID:           userID,
		Email:            strings.TrimSpace(data.Email),
		StripeCustomerID: strings.TrimSpace(data.CustomerID),
		Plan:             strings.TrimSpace(data.Plan),
		Status:           status,
		CurrentPeriodEnd: data.CurrentPeriodEnd,
	})
	return err
}
