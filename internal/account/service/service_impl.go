package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/pkg/db/option"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	accounts repository.Repository[accountdomain.Account]
	users    repository.Repository[accountdomain.User]
}

func NewService(p ServiceParam) accountdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("account.service"),

		accounts: repository.ProvideStore[accountdomain.Account](p.DB),
		users:    repository.ProvideStore[accountdomain.User](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, accountID int64) (*accountdomain.Account, error) {
	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ID: snowflake.ID(accountID)})
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}
	return account, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ContactEmail: email})
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}
	return account, nil
}

func (s *Service) Billable(ctx context.Context) ([]*accountdomain.Account, error) {
	return s.accounts.Find(ctx, &accountdomain.Account{},
		option.Where("payment_on_platform = ?", true),
		option.OrderBy("created_at ASC"),
	)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*accountdomain.User, error) {
	return s.users.FindOne(ctx, &accountdomain.User{Email: email})
}

func (s *Service) Update(ctx context.Context, account *accountdomain.Account) error {
	return s.accounts.BatchUpdate(ctx, []*accountdomain.Account{account})
}
