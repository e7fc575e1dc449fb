package option

import "gorm.io/gorm"

// QueryOption narrows or orders a repository query.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type orderBy struct {
	expr string
}

func (o orderBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.expr)
}

func OrderBy(expr string) QueryOption {
	return orderBy{expr: expr}
}

type limit struct {
	n int
}

func (o limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(o.n)
}

func Limit(n int) QueryOption {
	return limit{n: n}
}

type where struct {
	query string
	args  []any
}

func (o where) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(o.query, o.args...)
}

func Where(query string, args ...any) QueryOption {
	return where{query: query, args: args}
}
