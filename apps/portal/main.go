package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/logger"
	"github.com/gluufederation/ecommerce/internal/migration"
	"github.com/gluufederation/ecommerce/internal/server"
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

		server.Module,
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
