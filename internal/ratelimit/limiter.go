// Package ratelimit guards referral registration against code guessing and
// signup farming with a redis fixed-window counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunaglowlabs/lunaglow/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("too many attempts")

type Limiter struct {
	rdb  *redis.Client
	log  *zap.Logger
	live *config.Live
}

type LimiterParam struct {
	fx.In

	Redis *redis.Client `optional:"true"`
	Log   *zap.Logger
	Live  *config.Live
}

func NewLimiter(p LimiterParam) *Limiter {
	return &Limiter{
		rdb:  p.Redis,
		log:  p.Log.Named("ratelimit"),
		live: p.Live,
	}
}

// Allow counts an attempt under key and rejects once the window budget is
// spent. The budget is read from the live config on every call, so operators
// can tune it without a restart. Without redis the limiter is a pass-through.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	cfg := l.live.Current().RateLimit
	if !cfg.Enabled || l.rdb == nil {
		return nil
	}

	redisKey := fmt.Sprintf("ratelimit:referral:%s", key)
	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		// Fail open: a redis outage must not take registration down.
		l.log.Warn("rate limit check failed", zap.Error(err))
		return nil
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, cfg.Window).Err(); err != nil {
			l.log.Warn("rate limit expire failed", zap.Error(err))
		}
	}
	if count > int64(cfg.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)
