// Package server exposes the customer portal HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gluufederation/ecommerce/internal/account"
	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/config"
	"github.com/gluufederation/ecommerce/internal/credit"
	creditdomain "github.com/gluufederation/ecommerce/internal/credit/domain"
	"github.com/gluufederation/ecommerce/internal/idp"
	"github.com/gluufederation/ecommerce/internal/invoice"
	"github.com/gluufederation/ecommerce/internal/license"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/notification"
	obslogger "github.com/gluufederation/ecommerce/internal/observability/logger"
	"github.com/gluufederation/ecommerce/internal/payment"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/internal/providers/email"
	"github.com/gluufederation/ecommerce/internal/signup"
	"github.com/gluufederation/ecommerce/internal/uma"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	email.Module,
	notification.Module,
	uma.Module,
	idp.Module,
	account.Module,
	license.Module,
	credit.Module,
	payment.Module,
	invoice.Module,
	signup.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger

	accountSvc accountdomain.Service
	creditSvc  creditdomain.Service
	licenseSvc licensedomain.Service
	paymentSvc paymentdomain.Service
	builder    invoice.Builder
	signupSvc  signup.Service

	payments repository.Repository[paymentdomain.Payment]
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	DB  *gorm.DB
	Log *zap.Logger

	AccountSvc accountdomain.Service
	CreditSvc  creditdomain.Service
	LicenseSvc licensedomain.Service
	PaymentSvc paymentdomain.Service
	Builder    invoice.Builder
	SignupSvc  signup.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		log:    p.Log.Named("http.server"),

		accountSvc: p.AccountSvc,
		creditSvc:  p.CreditSvc,
		licenseSvc: p.LicenseSvc,
		paymentSvc: p.PaymentSvc,
		builder:    p.Builder,
		signupSvc:  p.SignupSvc,

		payments: repository.ProvideStore[paymentdomain.Payment](p.DB),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/signup", s.Signup)
	v1.GET("/activate/:key", s.Activate)

	v1.GET("/accounts/:account_id", s.GetAccount)
	v1.GET("/accounts/:account_id/license", s.GetLicense)
	v1.GET("/accounts/:account_id/usage", s.ListUsage)
	v1.POST("/accounts/:account_id/usage/sync", s.SyncUsage)
	v1.GET("/accounts/:account_id/payments", s.ListPayments)
	v1.GET("/accounts/:account_id/credits", s.GetCredits)
	v1.POST("/accounts/:account_id/cards", s.AddCard)
	v1.DELETE("/accounts/:account_id/cards/:card_id", s.RemoveCard)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
