// Package signup handles registration and email activation of new accounts.
package signup

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/auth/password"
	"github.com/gluufederation/ecommerce/internal/idp"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	"github.com/gluufederation/ecommerce/internal/notification"
	"github.com/gluufederation/ecommerce/pkg/db"
	"github.com/gluufederation/ecommerce/pkg/repository"
)

var (
	ErrEmailTaken        = errors.New("signup: email already registered")
	ErrInvalidActivation = errors.New("signup: unknown activation key")
	ErrAlreadyActive     = errors.New("signup: user already active")
)

// Registration is the input collected by the signup form.
type Registration struct {
	BusinessName string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Password     string
	Address1     string
	Address2     string
	City         string
	State        string
	ZipCode      string
	Country      string
}

// Service registers new accounts and activates them from emailed keys.
type Service interface {
	// Register creates the account, its admin user, the identity provider
	// record (inactive) and a pending activation key. The key is returned so
	// the caller can embed it in the activation email link.
	Register(ctx context.Context, reg Registration) (*accountdomain.User, string, error)
	// Activate flips the user active locally and at the identity provider,
	// then provisions the account's license.
	Activate(ctx context.Context, activationKey string) (*accountdomain.User, error)
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	IdP        idp.Connector
	Licenses   licensedomain.Service
	Dispatcher notification.Dispatcher
}

type service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	idp        idp.Connector
	licenses   licensedomain.Service
	dispatcher notification.Dispatcher

	accounts    repository.Repository[accountdomain.Account]
	users       repository.Repository[accountdomain.User]
	activations repository.Repository[accountdomain.Activation]
}

func NewService(p ServiceParam) Service {
	return &service{
		db:  p.DB,
		log: p.Log.Named("signup.service"),

		genID:      p.GenID,
		idp:        p.IdP,
		licenses:   p.Licenses,
		dispatcher: p.Dispatcher,

		accounts:    repository.ProvideStore[accountdomain.Account](p.DB),
		users:       repository.ProvideStore[accountdomain.User](p.DB),
		activations: repository.ProvideStore[accountdomain.Activation](p.DB),
	}
}

func (s *service) Register(ctx context.Context, reg Registration) (*accountdomain.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))

	// the idp is the other system of record for emails; check it first so a
	// stale provider-side user surfaces as a conflict, not a broken account
	exists, err := s.idp.EmailExists(ctx, email)
	if err != nil {
		s.log.Warn("idp email lookup failed, relying on local uniqueness",
			zap.String("email", email),
			zap.Error(err),
		)
	} else if exists {
		return nil, "", ErrEmailTaken
	}

	hash, err := password.Hash(reg.Password)
	if err != nil {
		return nil, "", err
	}

	account := &accountdomain.Account{
		ID:               s.genID.Generate(),
		BusinessName:     reg.BusinessName,
		ContactFirstName: reg.FirstName,
		ContactLastName:  reg.LastName,
		ContactEmail:     email,
		ContactPhone:     reg.Phone,
		Address1:         reg.Address1,
		Address2:         reg.Address2,
		City:             reg.City,
		State:            reg.State,
		ZipCode:          reg.ZipCode,
		Country:          reg.Country,
	}
	user := &accountdomain.User{
		ID:           s.genID.Generate(),
		AccountID:    account.ID,
		Email:        email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PhoneNumber:  reg.Phone,
		PasswordHash: hash,
		IsActive:     false,
	}
	activation := &accountdomain.Activation{
		ID:            s.genID.Generate(),
		UserID:        user.ID,
		ActivationKey: uuid.NewString(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.accounts.WithTrx(tx).Create(ctx, account); err != nil {
			return err
		}
		if err := s.users.WithTrx(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.activations.WithTrx(tx).Create(ctx, activation)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	// provisioned inactive until the emailed key comes back
	idpUUID, err := s.idp.CreateUser(ctx, *user, reg.Password, false)
	if err != nil {
		s.log.Error("idp provisioning failed, user left pending",
			zap.String("email", email),
			zap.Error(err),
		)
	} else {
		user.IdPUUID = idpUUID
		if err := s.users.Update(ctx, user.ID.String(), map[string]any{"idp_uuid": idpUUID}); err != nil {
			return nil, "", err
		}
	}

	s.log.Info("account registered",
		zap.Int64("account_id", int64(account.ID)),
		zap.String("email", email),
	)
	return user, activation.ActivationKey, nil
}

func (s *service) Activate(ctx context.Context, activationKey string) (*accountdomain.User, error) {
	activation, err := s.activations.FindOne(ctx, &accountdomain.Activation{ActivationKey: activationKey})
	if err != nil {
		return nil, err
	}
	if activation == nil {
		return nil, ErrInvalidActivation
	}

	user, err := s.users.FindOne(ctx, &accountdomain.User{ID: activation.UserID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidActivation
	}
	if user.IsActive {
		return nil, ErrAlreadyActive
	}

	if user.IdPUUID != "" {
		if err := s.idp.ActivateUser(ctx, *user); err != nil {
			s.log.Error("idp activation failed",
				zap.String("email", user.Email),
				zap.Error(err),
			)
		}
	}

	user.IsActive = true
	if err := s.users.Update(ctx, user.ID.String(), map[string]any{"is_active": true}); err != nil {
		return nil, err
	}
	if err := s.activations.Delete(ctx, activation.ID.String()); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindOne(ctx, &accountdomain.Account{ID: user.AccountID})
	if err != nil {
		return nil, err
	}

	if account != nil {
		if _, err := s.licenses.Acquire(ctx, int64(account.ID), account.Name()); err != nil {
			s.log.Error("license provisioning failed at activation",
				zap.Int64("account_id", int64(account.ID)),
				zap.Error(err),
			)
		}
		s.dispatcher.Notify(ctx, notification.Event{
			Kind:    notification.KindNewAccount,
			Account: account,
		})
	}

	s.log.Info("account activated", zap.String("email", user.Email))
	return user, nil
}

var Module = fx.Module("signup",
	fx.Provide(NewService),
)
