package license

import (
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/license/client"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/license/service"
	"github.com/gluufederation/ecommerce/internal/uma"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewConnector selects the real or mock license server connector.
func NewConnector(cfg config.Config, tokens uma.TokenSource, log *zap.Logger) licensedomain.Connector {
	if cfg.MockLicense {
		return client.NewMock()
	}
	return client.New(cfg, tokens, log)
}

var Module = fx.Module("license.service",
	fx.Provide(
		NewConnector,
		service.NewService,
	),
)
