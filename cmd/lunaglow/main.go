package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lunaglowlabs/lunaglow/internal/authorization"
	"github.com/lunaglowlabs/lunaglow/internal/billing"
	"github.com/lunaglowlabs/lunaglow/internal/clock"
	"github.com/lunaglowlabs/lunaglow/internal/commission"
	"github.com/lunaglowlabs/lunaglow/internal/config"
	"github.com/lunaglowlabs/lunaglow/internal/migration"
	"github.com/lunaglowlabs/lunaglow/internal/observability"
	"github.com/lunaglowlabs/lunaglow/internal/ratelimit"
	"github.com/lunaglowlabs/lunaglow/internal/redis"
	"github.com/lunaglowlabs/lunaglow/internal/referral"
	"github.com/lunaglowlabs/lunaglow/internal/referralcode"
	"github.com/lunaglowlabs/lunaglow/internal/scheduler"
	"github.com/lunaglowlabs/lunaglow/internal/server"
	"github.com/lunaglowlabs/lunaglow/internal/settings"
	"github.com/lunaglowlabs/lunaglow/internal/subscription"
	"github.com/lunaglowlabs/lunaglow/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "lunaglow",
		Short:   "Luna Glow referral service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the referral API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the referral sweep scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		append(domainModules(),
			redis.Module,
			ratelimit.Module,
			authorization.Module,
			scheduler.Module,
			server.Module,
		)...,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		append(domainModules(),
			scheduler.Module,
			fx.Invoke(startScheduler),
		)...,
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		append(domainModules(),
			redis.Module,
			ratelimit.Module,
			authorization.Module,
			scheduler.Module,
			server.Module,
			fx.Invoke(startScheduler),
		)...,
	)
	app.Run()
}

func domainModules() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		settings.Module,
		referralcode.Module,
		subscription.Module,
		billing.Module,
		commission.Module,
		referral.Module,
	}
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
