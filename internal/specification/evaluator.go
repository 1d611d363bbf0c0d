package specification

import (
	"slices"
)

// Query is a spec reduced to what a store executes. Take of zero means no limit.
type Query struct {
	Where    *Expr
	Includes []Include
	Order    []Order
	Skip     int
	Take     int
}

// Evaluate applies s to base in a fixed order: criteria, includes, ordering,
// then paging. A nil spec returns base unchanged.
func Evaluate[T any](base Query, s *Spec[T]) (Query, error) {
	if s == nil {
		return base, nil
	}
	if err := s.Validate(); err != nil {
		return Query{}, err
	}

	q := base
	q.Where = And(base.Where, s.Criteria)
	q.Includes = append(slices.Clone(base.Includes), s.Includes...)
	if s.OrderBy != nil {
		q.Order = append([]Order{*s.OrderBy}, s.ThenBy...)
	}
	if s.Paged() {
		q.Skip, q.Take = *s.Skip, *s.Take
	}
	return q, nil
}

// Filter returns the items matching e.
func Filter[T Record](items []T, e *Expr) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if e.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}

// Sort orders items in place by order. The sort is stable.
func Sort[T Record](items []T, order []Order) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b T) int {
		for _, o := range order {
			c := CompareField(a, b, o.Field)
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// Window returns the [skip, skip+take) slice of items.
func Window[T any](items []T, skip, take int) []T {
	if skip >= len(items) {
		return items[:0]
	}
	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}
	return items
}

// Apply runs q over items in memory: filter, sort, page.
func Apply[T Record](items []T, q Query) []T {
	out := Filter(items, q.Where)
	Sort(out, q.Order)
	return Window(out, q.Skip, q.Take)
}
