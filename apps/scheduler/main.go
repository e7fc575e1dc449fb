package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

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
	"github.com/gluufederation/ecommerce/internal/uma"
	"github.com/gluufederation/ecommerce/pkg/db"
)

func main() {
	app := fx.New(
		logger.Module,
		config.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		email.Module,
		notification.Module,
		uma.Module,
		idp.Module,
		account.Module,
		license.Module,
		credit.Module,
		payment.Module,
		invoice.Module,

		scheduler.Module,
		fx.Invoke(scheduler.Start),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
