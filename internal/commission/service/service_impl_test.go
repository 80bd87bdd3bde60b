package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"github.com/lunaglowlabs/lunaglow/internal/commission/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (commissiondomain.Service, *gorm.DB, *snowflake.Node, time.Time) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&commissiondomain.Transaction{},
		&commissiondomain.Balance{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fixedClock{now: now},
		Repo:  repository.Provide(),
	})
	return svc, db, node, now
}

func TestCommissionAmountRounding(t *testing.T) {
	require.Equal(t, int64(500), commissionAmount(1000, 50))
	require.Equal(t, int64(0), commissionAmount(1000, 0))
	require.Equal(t, int64(1000), commissionAmount(1000, 100))
	// 999 * 33.5% = 334.665, rounds half-up to 335
	require.Equal(t, int64(335), commissionAmount(999, 33.5))
	// half exactly rounds up
	require.Equal(t, int64(1), commissionAmount(1, 50))
}

func TestOpenSnapshotsRateAndBumpsPending(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	referrer := node.Generate()
	txn, err := svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID:          referrer,
		ReferralID:      node.Generate(),
		ReferredUserID:  node.Generate(),
		PaymentAmount:   10000,
		Currency:        "usd",
		RatePercent:     50,
		EligibilityDays: 30,
		Now:             now,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5000), txn.Amount)
	require.Equal(t, "USD", txn.Currency)
	require.Equal(t, commissiondomain.TransactionStatusPending, txn.Status)
	require.Equal(t, now.AddDate(0, 0, 30), txn.EligibleAt)

	balance, err := svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
	require.Equal(t, int64(0), balance.AvailableBalance)
}

func TestOpenIsIdempotentPerReferral(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	referrer := node.Generate()
	req := commissiondomain.OpenRequest{
		UserID:          referrer,
		ReferralID:      node.Generate(),
		ReferredUserID:  node.Generate(),
		PaymentAmount:   10000,
		Currency:        "USD",
		RatePercent:     50,
		EligibilityDays: 30,
		Now:             now,
	}

	first, err := svc.Open(ctx, nil, req)
	require.NoError(t, err)

	second, err := svc.Open(ctx, nil, req)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	balance, err := svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.PendingBalance)
}

func TestOpenRejectsBadInput(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	_, err := svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID: node.Generate(), ReferralID: node.Generate(), ReferredUserID: node.Generate(),
		PaymentAmount: 0, RatePercent: 50, Now: now,
	})
	require.ErrorIs(t, err, commissiondomain.ErrInvalidAmount)

	_, err = svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID: node.Generate(), ReferralID: node.Generate(), ReferredUserID: node.Generate(),
		PaymentAmount: 1000, RatePercent: 101, Now: now,
	})
	require.ErrorIs(t, err, commissiondomain.ErrInvalidRate)
}

func TestPromoteMovesPendingToAvailable(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	referrer := node.Generate()
	txn, err := svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID:          referrer,
		ReferralID:      node.Generate(),
		ReferredUserID:  node.Generate(),
		PaymentAmount:   10000,
		Currency:        "USD",
		RatePercent:     50,
		EligibilityDays: 30,
		Now:             now,
	})
	require.NoError(t, err)

	settledAt := now.AddDate(0, 0, 31)
	require.NoError(t, svc.Promote(ctx, txn.ID, settledAt))

	balance, err := svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.PendingBalance)
	require.Equal(t, int64(5000), balance.AvailableBalance)
	require.Equal(t, int64(5000), balance.TotalEarned)

	// Promoting again must not double-settle.
	require.NoError(t, svc.Promote(ctx, txn.ID, settledAt))
	balance, err = svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.AvailableBalance)
	require.Equal(t, int64(5000), balance.TotalEarned)
}

func TestCancelReleasesPending(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	referrer := node.Generate()
	txn, err := svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID:          referrer,
		ReferralID:      node.Generate(),
		ReferredUserID:  node.Generate(),
		PaymentAmount:   10000,
		Currency:        "USD",
		RatePercent:     50,
		EligibilityDays: 30,
		Now:             now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, txn.ID, "referred user churned"))

	balance, err := svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.PendingBalance)
	require.Equal(t, int64(0), balance.AvailableBalance)
	require.Equal(t, int64(0), balance.TotalEarned)

	// A cancelled transaction cannot be promoted afterwards.
	require.NoError(t, svc.Promote(ctx, txn.ID, now))
	balance, err = svc.GetBalance(ctx, referrer)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.AvailableBalance)
}

func TestPromoteMissingTransaction(t *testing.T) {
	svc, _, node, now := newTestService(t)
	err := svc.Promote(context.Background(), node.Generate(), now)
	require.ErrorIs(t, err, commissiondomain.ErrTransactionMissing)
}

func TestListDueReturnsOnlyRipePending(t *testing.T) {
	svc, _, node, now := newTestService(t)
	ctx := context.Background()

	ripe, err := svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID:         node.Generate(),
		ReferralID:     node.Generate(),
		ReferredUserID: node.Generate(),
		PaymentAmount:  1000, Currency: "USD", RatePercent: 50,
		EligibilityDays: 7, Now: now,
	})
	require.NoError(t, err)

	_, err = svc.Open(ctx, nil, commissiondomain.OpenRequest{
		UserID:         node.Generate(),
		ReferralID:     node.Generate(),
		ReferredUserID: node.Generate(),
		PaymentAmount:  1000, Currency: "USD", RatePercent: 50,
		EligibilityDays: 60, Now: now,
	})
	require.NoError(t, err)

	due, err := svc.ListDue(ctx, now.AddDate(0, 0, 10), 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, ripe.ID, due[0].ID)
}
