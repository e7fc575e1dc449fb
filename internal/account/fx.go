package account

import (
	"go.uber.org/fx"

	"github.com/gluufederation/ecommerce/internal/account/service"
)

var Module = fx.Module("account",
	fx.Provide(service.NewService),
)
