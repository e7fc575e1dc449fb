// Command ecommerce runs the portal API and the billing scheduler in a
// single process. With -job it runs one billing job and exits, which is how
// the monthly cron entries invoke it.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gluufederation/ecommerce/internal/account"
	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/credit"
	"github.com/gluufederation/ecommerce/internal/idp"
	"github.com/gluufederation/ecommerce/internal/invoice"
	"github.com/gluufederation/ecommerce/internal/license"
	"github.com/gluufederation/ecommerce/internal/logger"
	"github.com/gluufederation/ecommerce/internal/migration"
	"github.com/gluufederation/ecommerce/internal/notification"
	"github.com/gluufederation/ecommerce/internal/payment"
	"github.com/gluufederation/ecommerce/internal/providers/email"
	"github.com/gluufederation/ecommerce/internal/scheduler"
	"github.com/gluufederation/ecommerce/internal/server"
	"github.com/gluufederation/ecommerce/internal/uma"
	"github.com/gluufederation/ecommerce/pkg/db"
)

func main() {
	job := flag.String("job", "", "run a single billing job (sync_usage, monthly_summary, monthly_charge, monthly_retry) and exit")
	flag.Parse()

	core := fx.Options(
		logger.Module,
		config.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		scheduler.Module,
	)

	if *job != "" {
		runOnce(core, *job)
		return
	}

	app := fx.New(
		core,
		server.Module,
		fx.Invoke(scheduler.Start),
	)
	app.Run()
}

func runOnce(core fx.Option, job string) {
	var exitCode int
	app := fx.New(
		core,

		email.Module,
		notification.Module,
		uma.Module,
		idp.Module,
		account.Module,
		license.Module,
		credit.Module,
		payment.Module,
		invoice.Module,

		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, s *scheduler.Scheduler, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := s.RunOnce(context.Background(), job); err != nil {
							log.Error("job run failed", zap.String("job", job), zap.Error(err))
							exitCode = 1
						}
						_ = sd.Shutdown()
					}()
					return nil
				},
			})
		}),
	)
	app.Run()
	os.Exit(exitCode)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
