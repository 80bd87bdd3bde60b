package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	commissionrepo "github.com/lunaglowlabs/lunaglow/internal/commission/repository"
	commissionservice "github.com/lunaglowlabs/lunaglow/internal/commission/service"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	referralrepo "github.com/lunaglowlabs/lunaglow/internal/referral/repository"
	referralservice "github.com/lunaglowlabs/lunaglow/internal/referral/service"
	codedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	coderepo "github.com/lunaglowlabs/lunaglow/internal/referralcode/repository"
	codeservice "github.com/lunaglowlabs/lunaglow/internal/referralcode/service"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	settingsrepo "github.com/lunaglowlabs/lunaglow/internal/settings/repository"
	settingsservice "github.com/lunaglowlabs/lunaglow/internal/settings/service"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	subscriptionrepo "github.com/lunaglowlabs/lunaglow/internal/subscription/repository"
	subscriptionservice "github.com/lunaglowlabs/lunaglow/internal/subscription/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type webhookHarness struct {
	router        *gin.Engine
	db            *gorm.DB
	node          *snowflake.Node
	referralSvc   referraldomain.Service
	codeSvc       codedomain.Service
	commissionSvc commissiondomain.Service
	subscriptions subscriptiondomain.Service
}

func newWebhookHarness(t *testing.T, webhookSecret string) *webhookHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&codedomain.ReferralCode{},
		&referraldomain.Referral{},
		&commissiondomain.Transaction{},
		&commissiondomain.Balance{},
		&settingsdomain.Settings{},
		&subscriptiondomain.Subscription{},
		&billingdomain.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := zap.NewNop()

	cfg := config.Config{
		Stripe: config.StripeConfig{WebhookSecret: webhookSecret},
		Referral: config.ReferralConfig{
			CodeLength:          8,
			DefaultRatePercent:  50,
			DefaultEligibleDays: 30,
		},
	}

	codeRepo := coderepo.Provide()
	codeSvc := codeservice.NewService(codeservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: codeRepo, Cfg: cfg,
	})
	settingsSvc := settingsservice.NewService(settingsservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: settingsrepo.Provide(), Cfg: cfg,
	})
	commissionSvc := commissionservice.NewService(commissionservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: commissionrepo.Provide(),
	})
	referralSvc := referralservice.NewService(referralservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: referralrepo.Provide(),
		CodeSvc: codeSvc, CodeRepo: codeRepo,
		CommissionSvc: commissionSvc, SettingsSvc: settingsSvc,
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: subscriptionrepo.Provide(),
	})

	srv := &Server{
		db:            db,
		log:           log,
		clock:         clk,
		cfg:           cfg,
		referralSvc:   referralSvc,
		settingsSvc:   settingsSvc,
		commissionSvc: commissionSvc,
		subscriptions: subscriptions,
	}

	router := gin.New()
	router.POST("/v1/webhooks/billing", srv.BillingWebhook)

	return &webhookHarness{
		router:        router,
		db:            db,
		node:          node,
		referralSvc:   referralSvc,
		codeSvc:       codeSvc,
		commissionSvc: commissionSvc,
		subscriptions: subscriptions,
	}
}

func (h *webhookHarness) post(t *testing.T, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/billing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func TestWebhookPaymentSubscribesReferral(t *testing.T) {
	h := newWebhookHarness(t, "")
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	referred := h.node.Generate()
	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)

	body := `{
		"id": "evt_1",
		"type": "payment.succeeded",
		"data": {
			"user_id": "` + referred.String() + `",
			"email": "friend@example.com",
			"customer_id": "cus_friend",
			"plan": "premium_monthly",
			"status": "active",
			"amount": 10000,
			"currency": "USD"
		}
	}`
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	ref, err := h.referralSvc.GetByReferredUser(ctx, referred)
	require.NoError(t, err)
	require.Equal(t, referraldomain.StatusSubscribed, ref.Status)

	balance, err := h.commissionSvc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)

	sub, err := h.subscriptions.Get(ctx, referred)
	require.NoError(t, err)
	require.Equal(t, "cus_friend", sub.StripeCustomerID)
	require.Equal(t, subscriptiondomain.SubscriptionStatusActive, sub.Status)
}

func TestWebhookRedeliveryIsDeduplicated(t *testing.T) {
	h := newWebhookHarness(t, "")
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)
	referred := h.node.Generate()
	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)

	body := `{
		"id": "evt_dup",
		"type": "payment.succeeded",
		"data": {"user_id": "` + referred.String() + `", "amount": 10000, "currency": "USD"}
	}`
	first := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), `"duplicate":true`)

	balance, err := h.commissionSvc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
}

func TestWebhookRedeliveryRetriesAfterFailure(t *testing.T) {
	h := newWebhookHarness(t, "")
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)
	referred := h.node.Generate()
	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)

	body := `{
		"id": "evt_retry",
		"type": "payment.succeeded",
		"data": {"user_id": "` + referred.String() + `", "amount": 10000, "currency": "USD"}
	}`

	// A store failure mid-processing must not consume the event id.
	require.NoError(t, h.db.Exec(`ALTER TABLE commission_transactions RENAME TO commission_transactions_hidden`).Error)
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	ref, err := h.referralSvc.GetByReferredUser(ctx, referred)
	require.NoError(t, err)
	require.Equal(t, referraldomain.StatusSignedUp, ref.Status)

	// Once the store recovers, the provider's redelivery of the same id is
	// processed as a fresh event.
	require.NoError(t, h.db.Exec(`ALTER TABLE commission_transactions_hidden RENAME TO commission_transactions`).Error)
	resp = h.post(t, body, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), `"duplicate"`)

	ref, err = h.referralSvc.GetByReferredUser(ctx, referred)
	require.NoError(t, err)
	require.Equal(t, referraldomain.StatusSubscribed, ref.Status)

	balance, err := h.commissionSvc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
}

func TestWebhookPaymentWithoutReferralIsAccepted(t *testing.T) {
	h := newWebhookHarness(t, "")

	body := `{
		"id": "evt_stranger",
		"type": "payment.succeeded",
		"data": {"user_id": "` + h.node.Generate().String() + `", "amount": 10000, "currency": "USD"}
	}`
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestWebhookCancellationUpdatesMirror(t *testing.T) {
	h := newWebhookHarness(t, "")
	ctx := context.Background()

	userID := h.node.Generate()
	body := `{
		"id": "evt_cancel",
		"type": "subscription.cancelled",
		"data": {"user_id": "` + userID.String() + `", "customer_id": "cus_x"}
	}`
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	sub, err := h.subscriptions.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.SubscriptionStatusCanceled, sub.Status)

	subscribed, err := h.subscriptions.IsSubscribed(ctx, userID)
	require.NoError(t, err)
	require.False(t, subscribed)
}

func TestWebhookSparseEventKeepsBillingIdentity(t *testing.T) {
	h := newWebhookHarness(t, "")
	ctx := context.Background()

	userID := h.node.Generate()
	full := `{
		"id": "evt_full",
		"type": "subscription.created",
		"data": {
			"user_id": "` + userID.String() + `",
			"email": "user@example.com",
			"customer_id": "cus_keep",
			"plan": "premium_monthly",
			"status": "active"
		}
	}`
	resp := h.post(t, full, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	// Cancellation deliveries carry only the user id; the stored identity
	// must survive them or the reward sweep can never find the customer.
	sparse := `{
		"id": "evt_sparse",
		"type": "subscription.cancelled",
		"data": {"user_id": "` + userID.String() + `"}
	}`
	resp = h.post(t, sparse, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	sub, err := h.subscriptions.Get(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.SubscriptionStatusCanceled, sub.Status)
	require.Equal(t, "cus_keep", sub.StripeCustomerID)
	require.Equal(t, "user@example.com", sub.Email)
	require.Equal(t, "premium_monthly", sub.Plan)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	h := newWebhookHarness(t, "whsec_test")

	body := `{"id": "evt_x", "type": "payment.succeeded", "data": {}}`
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = h.post(t, body, map[string]string{"X-Webhook-Secret": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = h.post(t, body, map[string]string{"X-Webhook-Secret": "whsec_test"})
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	h := newWebhookHarness(t, "")

	resp := h.post(t, "not json", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.post(t, `{"type": "payment.succeeded"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	h := newWebhookHarness(t, "")

	body := `{
		"id": "evt_other",
		"type": "invoice.finalized",
		"data": {"user_id": "` + h.node.Generate().String() + `"}
	}`
	resp := h.post(t, body, nil)
	require.Equal(t, http.StatusOK, resp.Code)
}
