package service

import (
	"context"
	"crypto/rand"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	codedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	pkgdb "github.com/lunaglowlabs/lunaglow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ambiguous characters are excluded so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxGenerateAttempts = 5

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       codedomain.Repository
	codeLength int
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  codedomain.Repository
	Cfg   config.Config
}

func NewService(p ServiceParam) codedomain.Service {
	length := p.Cfg.Referral.CodeLength
	if length <= 0 {
		length = 8
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("referralcode.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		codeLength: length,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, userID snowflake.ID) (*codedomain.ReferralCode, error) {
	if userID == 0 {
		return nil, codedomain.ErrInvalidUser
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		rc := &codedomain.ReferralCode{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Code:      s.randomCode(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := s.repo.Insert(ctx, s.db, rc)
		if err == nil {
			s.log.Info("referral code issued",
				zap.String("user_id", userID.String()),
				zap.String("code", rc.Code))
			return rc, nil
		}
		if !pkgdb.IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err

		// The user may have raced us to their own code.
		existing, ferr := s.repo.FindByUserID(ctx, s.db, userID)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return existing, nil
		}
		// Otherwise the generated string collided; try a fresh one.
	}
	return nil, lastErr
}

func (s *Service) Resolve(ctx context.Context, code string) (*codedomain.ReferralCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, codedomain.ErrInvalidCode
	}
	rc, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, codedomain.ErrInvalidCode
	}
	return rc, nil
}

func (s *Service) randomCode() string {
	buf := make([]byte, s.codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
