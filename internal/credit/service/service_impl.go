package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/clock"
	"github.com/gluufederation/ecommerce/internal/config"
	creditdomain "github.com/gluufederation/ecommerce/internal/credit/domain"
	"github.com/gluufederation/ecommerce/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	billing *config.BillingConfigHolder
	credits repository.Repository[accountdomain.Credit]
}

func NewService(p ServiceParam) creditdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("credit.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		billing: p.Billing,
		credits: repository.ProvideStore[accountdomain.Credit](p.DB),
	}
}

func (s *Service) Apply(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, amountDue float64) (float64, error) {
	if tx == nil {
		tx = s.db
	}
	if amountDue <= 0 {
		return 0, nil
	}

	now := s.clock.Now()
	usable, err := s.usableCredits(ctx, tx, account.ID, now)
	if err != nil {
		return 0, err
	}

	switch len(usable) {
	case 0:
		return 0, nil
	case 1:
		// fall through
	default:
		// Only one concurrently usable credit is supported. Applying an
		// arbitrary one would silently pick a winner, so apply none.
		s.log.Warn("multiple usable credits found, applying none",
			zap.Int64("account_id", int64(account.ID)),
			zap.Int("credits", len(usable)),
		)
		return 0, nil
	}

	credit := usable[0]
	consumed := amountDue
	if credit.RemainingAmount <= amountDue {
		consumed = credit.RemainingAmount
		credit.RemainingAmount = 0
	} else {
		credit.RemainingAmount -= amountDue
	}

	if err := tx.WithContext(ctx).Model(&accountdomain.Credit{}).
		Where("id = ?", credit.ID).
		Update("remaining_amount", credit.RemainingAmount).Error; err != nil {
		return 0, err
	}

	s.log.Info("credit applied",
		zap.Int64("account_id", int64(account.ID)),
		zap.Float64("consumed", consumed),
		zap.Float64("remaining", credit.RemainingAmount),
	)
	return consumed, nil
}

func (s *Service) Grant(ctx context.Context, accountID int64, amount float64) (*accountdomain.Credit, error) {
	cfg := s.billing.Get()
	credit := &accountdomain.Credit{
		ID:              s.genID.Generate(),
		AccountID:       snowflake.ID(accountID),
		InitialAmount:   amount,
		RemainingAmount: amount,
		Expires:         s.clock.Now().AddDate(0, 0, cfg.CreditWindowDays),
	}
	if err := s.credits.Create(ctx, credit); err != nil {
		return nil, err
	}
	return credit, nil
}

func (s *Service) Remaining(ctx context.Context, accountID int64) (float64, error) {
	usable, err := s.usableCredits(ctx, s.db, snowflake.ID(accountID), s.clock.Now())
	if err != nil {
		return 0, err
	}
	var total float64
	for _, credit := range usable {
		total += credit.RemainingAmount
	}
	return total, nil
}

func (s *Service) usableCredits(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, now time.Time) ([]*accountdomain.Credit, error) {
	var usable []*accountdomain.Credit
	err := tx.WithContext(ctx).
		Where("account_id = ? AND expires > ? AND remaining_amount > 0", accountID, now).
		Order("created_at").
		Find(&usable).Error
	if err != nil {
		return nil, err
	}
	return usable, nil
}
