package specification

import (
	"fmt"

	"catalog-core/internal/domain"
)

// Include names a related entity to load alongside the results.
type Include string

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Definition holds the query parts shared by every Spec.
type Definition struct {
	Criteria *Expr
	Includes []Include
	OrderBy  *Order
	ThenBy   []Order
	Skip     *int
	Take     *int
}

// Spec describes a query over entities of type T: criteria, related data to
// load, ordering and an optional page window.
type Spec[T any] struct {
	Definition
}

// Option configures a Spec.
type Option func(*Definition) error

// New builds and validates a Spec.
func New[T any](opts ...Option) (*Spec[T], error) {
	s := &Spec[T]{}
	for _, opt := range opts {
		if err := opt(&s.Definition); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New for specs built from constants.
func MustNew[T any](opts ...Option) *Spec[T] {
	s, err := New[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Where adds criteria. Repeated calls are AND-ed.
func Where(e *Expr) Option {
	return func(d *Definition) error {
		if err := e.Validate(); err != nil {
			return err
		}
		d.Criteria = And(d.Criteria, e)
		return nil
	}
}

// Including requests related entities.
func Including(includes ...Include) Option {
	return func(d *Definition) error {
		for _, inc := range includes {
			if inc == "" {
				return fmt.Errorf("empty include")
			}
			d.Includes = append(d.Includes, inc)
		}
		return nil
	}
}

func OrderBy(field string) Option           { return orderBy(Asc(field)) }
func OrderByDescending(field string) Option { return orderBy(Desc(field)) }
func ThenBy(field string) Option            { return thenBy(Asc(field)) }
func ThenByDescending(field string) Option  { return thenBy(Desc(field)) }

func orderBy(o Order) Option {
	return func(d *Definition) error {
		if o.Field == "" {
			return fmt.Errorf("order by empty field")
		}
		if d.OrderBy != nil {
			return fmt.Errorf("primary order already set to %q", d.OrderBy.Field)
		}
		d.OrderBy = &o
		return nil
	}
}

func thenBy(o Order) Option {
	return func(d *Definition) error {
		if o.Field == "" {
			return fmt.Errorf("then by empty field")
		}
		d.ThenBy = append(d.ThenBy, o)
		return nil
	}
}

// Page sets the window: skip records, then return at most take.
func Page(skip, take int) Option {
	return func(d *Definition) error {
		if skip < 0 {
			return fmt.Errorf("skip must be non-negative, got %d", skip)
		}
		if take <= 0 {
			return fmt.Errorf("take must be positive, got %d", take)
		}
		d.Skip, d.Take = &skip, &take
		return nil
	}
}

// PageNumber sets the window from a 1-based page number.
func PageNumber(page, size int) Option {
	return func(d *Definition) error {
		if page < 1 {
			return fmt.Errorf("page must be at least 1, got %d", page)
		}
		return Page((page-1)*size, size)(d)
	}
}

// Validate checks the parts that options cannot check on their own.
func (d *Definition) Validate() error {
	if (d.Skip == nil) != (d.Take == nil) {
		return fmt.Errorf("%w: skip and take must be set together", domain.ErrInvalidSpecification)
	}
	if d.Skip != nil && (*d.Skip < 0 || *d.Take <= 0) {
		return fmt.Errorf("%w: invalid page window skip=%d take=%d", domain.ErrInvalidSpecification, *d.Skip, *d.Take)
	}
	if len(d.ThenBy) > 0 && d.OrderBy == nil {
		return fmt.Errorf("%w: secondary order without primary order", domain.ErrInvalidSpecification)
	}
	if err := d.Criteria.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSpecification, err)
	}
	return nil
}

// Paged reports whether a page window is set.
func (d *Definition) Paged() bool {
	return d.Skip != nil && d.Take != nil
}

// Projection pairs a spec with a mapping applied after the results are loaded.
type Projection[T, R any] struct {
	Spec   *Spec[T]
	Select func(T) R
}

// Map applies Select to items.
func (p Projection[T, R]) Map(items []T) []R {
	out := make([]R, len(items))
	for i, it := range items {
		out[i] = p.Select(it)
	}
	return out
}
