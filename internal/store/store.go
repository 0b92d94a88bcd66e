package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/me/folio/pkg/model"
)

var (
	// ErrUnknownField is returned when a query or write names a column
	// outside the collection's allow-list.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownCollection is returned for collections that have no table.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports per-field problems with a write.
type ValidationError struct {
	Details []model.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Filter is an equality condition on a single column.
type Filter struct {
	Field string
	Value any
}

// Query selects records from a collection.
type Query struct {
	Filters []Filter
	// Order is a column name, prefixed with "-" for descending order.
	// Empty means the collection's default order.
	Order  string
	Limit  int
	Offset int
}

// Where appends an equality filter and returns the query.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Store defines the persistence layer for Folio content.
type Store interface {
	// Collection records
	Select(ctx context.Context, c model.Collection, q Query) ([]model.Record, int, error)
	Get(ctx context.Context, c model.Collection, id string) (model.Record, error)
	GetBy(ctx context.Context, c model.Collection, field string, value any) (model.Record, error)
	Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error)
	Update(ctx context.Context, c model.Collection, id string, patch model.Record) (model.Record, error)
	Delete(ctx context.Context, c model.Collection, id string) (bool, error)
	Count(ctx context.Context, c model.Collection, filters ...Filter) (int, error)

	// Admin accounts
	CreateAdmin(ctx context.Context, a *model.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	TouchAdminLogin(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}
