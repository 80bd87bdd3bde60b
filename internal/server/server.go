// Package server exposes the referral program over HTTP. Every route under
// /v1 requires an API key; the settings and manual sweep routes additionally
// require the admin role.
package server

import (
	"context"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/lunaglowlabs/lunaglow/internal/billing/domain"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	"github.com/lunaglowlabs/lunaglow/internal/ratelimit"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	referralcodedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	"github.com/lunaglowlabs/lunaglow/internal/scheduler"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
	subscriptiondomain "github.com/lunaglowlabs/lunaglow/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine   *gin.Engine
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	registry *prometheus.Registry
	enforcer *casbin.Enforcer
	limiter  *ratelimit.Limiter

	referralSvc   referraldomain.Service
	codeSvc       referralcodedomain.Service
	commissionSvc commissiondomain.Service
	settingsSvc   settingsdomain.Service
	subscriptions subscriptiondomain.Service
	gateway       billingdomain.Gateway
	sched         *scheduler.Scheduler
}

type Params struct {
	fx.In

	Engine   *gin.Engine
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Registry *prometheus.Registry
	Enforcer *casbin.Enforcer
	Limiter  *ratelimit.Limiter

	ReferralSvc   referraldomain.Service
	CodeSvc       referralcodedomain.Service
	CommissionSvc commissiondomain.Service
	SettingsSvc   settingsdomain.Service
	Subscriptions subscriptiondomain.Service
	Gateway       billingdomain.Gateway
	Sched         *scheduler.Scheduler
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		db:            p.DB,
		log:           p.Log.Named("server"),
		clock:         p.Clock,
		cfg:           p.Cfg,
		registry:      p.Registry,
		enforcer:      p.Enforcer,
		limiter:       p.Limiter,
		referralSvc:   p.ReferralSvc,
		codeSvc:       p.CodeSvc,
		commissionSvc: p.CommissionSvc,
		settingsSvc:   p.SettingsSvc,
		subscriptions: p.Subscriptions,
		gateway:       p.Gateway,
		sched:         p.Sched,
	}
}

func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/v1")
	v1.POST("/webhooks/billing", s.BillingWebhook)

	authed := v1.Group("")
	authed.Use(s.APIKeyRequired())
	{
		authed.POST("/referrals", s.RegisterReferral)
		authed.GET("/referrals", s.ListReferrals)
		authed.GET("/referrals/code", s.GetReferralCode)
		authed.GET("/referrals/balance", s.GetBalance)
	}

	admin := v1.Group("")
	admin.Use(s.APIKeyRequired(), s.AdminRequired())
	{
		admin.GET("/settings", s.GetSettings)
		admin.PUT("/settings", s.UpdateSettings)
		admin.POST("/sweeps/eligibility", s.RunEligibilitySweep)
		admin.POST("/sweeps/rewards", s.RunRewardSweep)
	}
}

// RunHTTP binds the engine to the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)
