package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
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
	repo  commissiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  commissiondomain.Repository
}

func NewService(p ServiceParam) commissiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("commission.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// commissionAmount rounds half-up in minor units. The snapshot taken here is
// what the ledger carries forever; later rate changes affect new transactions
// only.
func commissionAmount(payment int64, ratePercent float64) int64 {
	return int64(math.Floor(float64(payment)*ratePercent/100 + 0.5))
}

func (s *Service) Open(ctx context.Context, db *gorm.DB, req commissiondomain.OpenRequest) (*commissiondomain.Transaction, error) {
	if req.PaymentAmount <= 0 {
		return nil, commissiondomain.ErrInvalidAmount
	}
	if req.RatePercent < 0 || req.RatePercent > 100 {
		return nil, commissiondomain.ErrInvalidRate
	}
	if db == nil {
		db = s.db
	}

	existing, err := s.repo.FindByReferral(ctx, db, req.ReferralID, req.ReferredUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	txn := &commissiondomain.Transaction{
		ID:             s.genID.Generate(),
		UserID:         req.UserID,
		ReferralID:     req.ReferralID,
		ReferredUserID: req.ReferredUserID,
		Amount:         commissionAmount(req.PaymentAmount, req.RatePercent),
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		Status:         commissiondomain.TransactionStatusPending,
		PaymentAmount:  req.PaymentAmount,
		RatePercent:    req.RatePercent,
		EligibleAt:     now.AddDate(0, 0, req.EligibilityDays),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.InsertTransaction(ctx, db, txn); err != nil {
		if pkgdb.IsUniqueViolation(err) {
			// A concurrent delivery of the same payment event won.
			return s.repo.FindByReferral(ctx, db, req.ReferralID, req.ReferredUserID)
		}
		return nil, err
	}
	if err := s.repo.UpsertBalanceAddPending(ctx, db, req.UserID, txn.Amount, now); err != nil {
		return nil, err
	}

	s.log.Info("commission opened",
		zap.String("user_id", req.UserID.String()),
		zap.String("referral_id", req.ReferralID.String()),
		zap.Int64("amount", txn.Amount),
		zap.Float64("rate_percent", req.RatePercent))
	return txn, nil
}

func (s *Service) Promote(ctx context.Context, txnID snowflake.ID, now time.Time) error {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.FindTransactionByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if txn == nil {
			return commissiondomain.ErrTransactionMissing
		}

		moved, err := s.repo.MarkAvailable(ctx, tx, txnID, now)
		if err != nil {
			return err
		}
		if !moved {
			// Another sweep already settled it; the balance moved with it.
			return nil
		}
		return s.repo.SettlePending(ctx, tx, txn.UserID, txn.Amount, now)
	})
}

func (s *Service) Cancel(ctx context.Context, txnID snowflake.ID, reason string) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.FindTransactionByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if txn == nil {
			return commissiondomain.ErrTransactionMissing
		}

		moved, err := s.repo.MarkCancelled(ctx, tx, txnID, reason, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.repo.ReleasePending(ctx, tx, txn.UserID, txn.Amount, now)
	})
}

func (s *Service) GetBalance(ctx context.Context, userID snowflake.ID) (commissiondomain.Balance, error) {
	b, err := s.repo.GetBalance(ctx, s.db, userID)
	if err != nil {
		return commissiondomain.Balance{}, err
	}
	if b == nil {
		return commissiondomain.Balance{UserID: userID}, nil
	}
	return *b, nil
}

func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]commissiondomain.Transaction, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.repo.ListDue(ctx, s.db, now, limit)
}
