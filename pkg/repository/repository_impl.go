package repository

import (
	"context"
	"errors"

	"github.com/gluufederation/ecommerce/pkg/db/option"
	"gorm.io/gorm"
)

type gormStore[T any] struct {
	conn *gorm.DB
}

// ProvideStore builds a Repository bound to the given connection.
func ProvideStore[T any](conn *gorm.DB) Repository[T] {
	return &gormStore[T]{conn: conn}
}

// WithTrx rebinds the store to a transaction handle.
func (s *gormStore[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &gormStore[T]{conn: tx}
}

func (s *gormStore[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	if err := s.scoped(ctx, filter, opts...).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil without error when no row matches the filter.
func (s *gormStore[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := s.scoped(ctx, filter, opts...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStore[T]) Create(ctx context.Context, row *T) error {
	return s.conn.WithContext(ctx).Create(row).Error
}

func (s *gormStore[T]) Update(ctx context.Context, id string, fields any) error {
	return s.conn.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields).Error
}

func (s *gormStore[T]) Delete(ctx context.Context, id string) error {
	return s.conn.WithContext(ctx).Where("id = ?", id).Delete(new(T)).Error
}

func (s *gormStore[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var n int64
	err := s.conn.WithContext(ctx).Model(filter).Where(filter).Count(&n).Error
	return n, err
}

func (s *gormStore[T]) BatchCreate(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return s.conn.WithContext(ctx).Create(rows).Error
}

// BatchUpdate saves each row inside one transaction so a failure leaves
// none of them written.
func (s *gormStore[T]) BatchUpdate(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore[T]) scoped(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	stmt := s.conn.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
