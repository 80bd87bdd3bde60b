package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	commissionrepo "github.com/lunaglowlabs/lunaglow/internal/commission/repository"
	commissionservice "github.com/lunaglowlabs/lunaglow/internal/commission/service"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	referralrepo "github.com/lunaglowlabs/lunaglow/internal/referral/repository"
	codedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	coderepo "github.com/lunaglowlabs/lunaglow/internal/referralcode/repository"
	codeservice "github.com/lunaglowlabs/lunaglow/internal/referralcode/service"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	settingsrepo "github.com/lunaglowlabs/lunaglow/internal/settings/repository"
	settingsservice "github.com/lunaglowlabs/lunaglow/internal/settings/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type harness struct {
	db            *gorm.DB
	node          *snowflake.Node
	now           time.Time
	referralSvc   referraldomain.Service
	codeSvc       codedomain.Service
	commissionSvc commissiondomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

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
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := fixedClock{now: now}
	log := zap.NewNop()

	cfg := config.Config{
		Referral: config.ReferralConfig{
			CodeLength:           8,
			DefaultRatePercent:   50,
			DefaultEligibleDays:  30,
			RewardPercent:        10,
			RewardDurationMonths: 1,
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
	referralSvc := NewService(ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: referralrepo.Provide(),
		CodeSvc: codeSvc, CodeRepo: codeRepo,
		CommissionSvc: commissionSvc, SettingsSvc: settingsSvc,
	})

	return &harness{
		db:            db,
		node:          node,
		now:           now,
		referralSvc:   referralSvc,
		codeSvc:       codeSvc,
		commissionSvc: commissionSvc,
	}
}

func TestRegisterRecordsSignup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	referred := h.node.Generate()
	ref, err := h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
		ReferredEmail:  "Friend@Example.com",
	})
	require.NoError(t, err)
	require.Equal(t, referrer, ref.ReferrerUserID)
	require.Equal(t, referraldomain.StatusSignedUp, ref.Status)
	require.Equal(t, "friend@example.com", ref.ReferredEmail)

	updated, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, 1, updated.TotalReferrals)
	require.Equal(t, 0, updated.SuccessfulReferrals)
}

func TestRegisterResolvesCodeCaseInsensitively(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	ref, err := h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           "  " + strings.ToLower(code.Code) + " ",
		ReferredUserID: h.node.Generate(),
	})
	require.NoError(t, err)
	require.Equal(t, code.Code, ref.Code)
}

func TestRegisterRejectsSelfReferral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referrer,
	})
	require.ErrorIs(t, err, referraldomain.ErrSelfReferral)
}

func TestRegisterRejectsSecondReferral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	codeA, err := h.codeSvc.GetOrCreate(ctx, h.node.Generate())
	require.NoError(t, err)
	codeB, err := h.codeSvc.GetOrCreate(ctx, h.node.Generate())
	require.NoError(t, err)

	referred := h.node.Generate()
	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           codeA.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)

	_, err = h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           codeB.Code,
		ReferredUserID: referred,
	})
	require.ErrorIs(t, err, referraldomain.ErrAlreadyReferred)
}

func TestRegisterRejectsUnknownCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.referralSvc.Register(context.Background(), referraldomain.RegisterRequest{
		Code:           "NOPENOPE",
		ReferredUserID: h.node.Generate(),
	})
	require.ErrorIs(t, err, codedomain.ErrInvalidCode)
}

func TestMarkSubscribedOpensCommission(t *testing.T) {
	h := newHarness(t)
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

	ref, err := h.referralSvc.MarkSubscribed(ctx, referraldomain.MarkSubscribedRequest{
		ReferredUserID: referred,
		PaymentAmount:  10000,
		Currency:       "USD",
	})
	require.NoError(t, err)
	require.Equal(t, referraldomain.StatusSubscribed, ref.Status)
	require.NotNil(t, ref.RewardEligibleAt)
	require.Equal(t, h.now.AddDate(0, 0, 30), *ref.RewardEligibleAt)

	// A single pending commission at the default 50% rate.
	balance, err := h.commissionSvc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
}

func TestMarkSubscribedReplayIsNoOp(t *testing.T) {
	h := newHarness(t)
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

	req := referraldomain.MarkSubscribedRequest{
		ReferredUserID: referred,
		PaymentAmount:  10000,
		Currency:       "USD",
	}
	_, err = h.referralSvc.MarkSubscribed(ctx, req)
	require.NoError(t, err)
	_, err = h.referralSvc.MarkSubscribed(ctx, req)
	require.NoError(t, err)

	balance, err := h.commissionSvc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
}

func TestMarkSubscribedWithoutReferral(t *testing.T) {
	h := newHarness(t)
	_, err := h.referralSvc.MarkSubscribed(context.Background(), referraldomain.MarkSubscribedRequest{
		ReferredUserID: h.node.Generate(),
		PaymentAmount:  10000,
		Currency:       "USD",
	})
	require.ErrorIs(t, err, referraldomain.ErrReferralNotFound)
}

func TestMarkRewardedBumpsSuccessfulReferrals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	referred := h.node.Generate()
	ref, err := h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)
	_, err = h.referralSvc.MarkSubscribed(ctx, referraldomain.MarkSubscribedRequest{
		ReferredUserID: referred, PaymentAmount: 10000, Currency: "USD",
	})
	require.NoError(t, err)

	require.NoError(t, h.referralSvc.MarkRewarded(ctx, ref.ID, referrer, "coupon_123"))
	// Replayed reward application changes nothing.
	require.NoError(t, h.referralSvc.MarkRewarded(ctx, ref.ID, referrer, "coupon_456"))

	got, err := h.referralSvc.GetByReferredUser(ctx, referred)
	require.NoError(t, err)
	require.Equal(t, referraldomain.StatusRewarded, got.Status)
	require.True(t, got.RewardApplied)
	require.Equal(t, "coupon_123", got.CouponRef)

	updated, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, 1, updated.SuccessfulReferrals)
	require.Equal(t, 1, updated.RewardsEarned)
}

func TestListRewardDueFiltersApplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	referrer := h.node.Generate()
	code, err := h.codeSvc.GetOrCreate(ctx, referrer)
	require.NoError(t, err)

	referred := h.node.Generate()
	ref, err := h.referralSvc.Register(ctx, referraldomain.RegisterRequest{
		Code:           code.Code,
		ReferredUserID: referred,
	})
	require.NoError(t, err)
	_, err = h.referralSvc.MarkSubscribed(ctx, referraldomain.MarkSubscribedRequest{
		ReferredUserID: referred, PaymentAmount: 10000, Currency: "USD",
	})
	require.NoError(t, err)

	// Not due yet.
	due, err := h.referralSvc.ListRewardDue(ctx, h.now.AddDate(0, 0, 1), 10)
	require.NoError(t, err)
	require.Empty(t, due)

	// Due after the waiting period.
	due, err = h.referralSvc.ListRewardDue(ctx, h.now.AddDate(0, 0, 31), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Promotion to eligible keeps the referral in the reward queue.
	require.NoError(t, h.referralSvc.MarkEligible(ctx, ref.ID))
	due, err = h.referralSvc.ListRewardDue(ctx, h.now.AddDate(0, 0, 31), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Applying the reward drains it.
	require.NoError(t, h.referralSvc.MarkRewarded(ctx, ref.ID, referrer, "coupon_123"))
	due, err = h.referralSvc.ListRewardDue(ctx, h.now.AddDate(0, 0, 31), 10)
	require.NoError(t, err)
	require.Empty(t, due)
}
