package specification

import (
	"bytes"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record is anything that exposes its stored fields by name.
type Record interface {
	Value(field string) any
}

// Matches evaluates e against r. A nil expression matches.
func (e *Expr) Matches(r Record) bool {
	if e == nil {
		return true
	}
	switch e.Op {
	case OpAnd:
		for _, a := range e.Args {
			if !a.Matches(r) {
				return false
			}
		}
		return true
	case OpOr:
		for _, a := range e.Args {
			if a.Matches(r) {
				return true
			}
		}
		return false
	case OpNot:
		return !e.Args[0].Matches(r)
	case OpNone:
		return false
	}

	v := deref(r.Value(e.Field))
	switch e.Op {
	case OpIsNull:
		return v == nil
	case OpNotNull:
		return v != nil
	case OpIn:
		if v == nil {
			return false
		}
		for _, want := range e.Values {
			if c, ok := compareValues(v, deref(want)); ok && c == 0 {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := v.(string)
		if !ok {
			return false
		}
		sub, _ := e.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpNe:
		if v == nil {
			return true
		}
		c, ok := compareValues(v, deref(e.Value))
		return !ok || c != 0
	}

	if v == nil {
		return false
	}
	c, ok := compareValues(v, deref(e.Value))
	if !ok {
		return false
	}
	switch e.Op {
	case OpEq:
		return c == 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// compareValues orders two non-nil dereferenced values. ok is false when the
// values have no common ordering.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
		return 0, false
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
		return 0, false
	case uuid.UUID:
		switch y := b.(type) {
		case uuid.UUID:
			return bytes.Compare(x[:], y[:]), true
		case string:
			parsed, err := uuid.Parse(y)
			if err != nil {
				return 0, false
			}
			return bytes.Compare(x[:], parsed[:]), true
		}
		return 0, false
	}

	xd, ok := toDecimal(a)
	if !ok {
		return 0, false
	}
	yd, ok := toDecimal(b)
	if !ok {
		return 0, false
	}
	return xd.Cmp(yd), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float()), true
	}
	return decimal.Decimal{}, false
}

// CompareField orders a and b on field. Nulls sort after every value.
func CompareField(a, b Record, field string) int {
	av, bv := deref(a.Value(field)), deref(b.Value(field))
	switch {
	case av == nil && bv == nil:
		return 0
	case av == nil:
		return 1
	case bv == nil:
		return -1
	}
	c, _ := compareValues(av, bv)
	return c
}
