package payment

import (
	"go.uber.org/fx"

	"github.com/gluufederation/ecommerce/internal/payment/gateway"
	"github.com/gluufederation/ecommerce/internal/payment/service"
)

var Module = fx.Module("payment",
	fx.Provide(
		gateway.NewStripeGateway,
		service.NewService,
	),
)
