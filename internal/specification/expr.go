package specification

import (
	"fmt"
	"reflect"
	"strings"
)

// Op identifies the kind of an expression node.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpIsNull   Op = "is_null"
	OpNotNull  Op = "not_null"
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
	OpNone     Op = "none"
)

// Expr is a filter over named entity fields. The same tree is evaluated in
// memory, compiled to SQL and compiled to a Mongo filter. A nil *Expr matches
// every record.
type Expr struct {
	Op     Op
	Field  string
	Value  any
	Values []any
	Args   []*Expr
}

func compare(op Op, field string, value any) *Expr {
	return &Expr{Op: op, Field: field, Value: value}
}

// Eq matches records whose field equals value. A nil value means IsNull.
func Eq(field string, value any) *Expr {
	if isNil(value) {
		return IsNull(field)
	}
	return compare(OpEq, field, value)
}

// Ne matches records whose field differs from value, null fields included.
// A nil value means NotNull.
func Ne(field string, value any) *Expr {
	if isNil(value) {
		return NotNull(field)
	}
	return compare(OpNe, field, value)
}

func Gt(field string, value any) *Expr  { return compare(OpGt, field, value) }
func Gte(field string, value any) *Expr { return compare(OpGte, field, value) }
func Lt(field string, value any) *Expr  { return compare(OpLt, field, value) }
func Lte(field string, value any) *Expr { return compare(OpLte, field, value) }

// In matches records whose field equals one of values. An empty set matches nothing.
func In[V any](field string, values []V) *Expr {
	if len(values) == 0 {
		return None()
	}
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return &Expr{Op: OpIn, Field: field, Values: vs}
}

// Contains is a case-insensitive substring match on a text field.
func Contains(field, substr string) *Expr {
	return compare(OpContains, field, substr)
}

func IsNull(field string) *Expr  { return &Expr{Op: OpIsNull, Field: field} }
func NotNull(field string) *Expr { return &Expr{Op: OpNotNull, Field: field} }

// None matches nothing.
func None() *Expr { return &Expr{Op: OpNone} }

// And joins exprs. Nil arguments are dropped and nested conjunctions flattened.
func And(exprs ...*Expr) *Expr {
	var args []*Expr
	for _, e := range exprs {
		switch {
		case e == nil:
		case e.Op == OpAnd:
			args = append(args, e.Args...)
		default:
			args = append(args, e)
		}
	}
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	}
	return &Expr{Op: OpAnd, Args: args}
}

// Or joins exprs. A nil argument matches everything, which makes the whole
// disjunction nil.
func Or(exprs ...*Expr) *Expr {
	if len(exprs) == 0 {
		return None()
	}
	var args []*Expr
	for _, e := range exprs {
		if e == nil {
			return nil
		}
		if e.Op == OpOr {
			args = append(args, e.Args...)
			continue
		}
		args = append(args, e)
	}
	if len(args) == 1 {
		return args[0]
	}
	return &Expr{Op: OpOr, Args: args}
}

// Not negates e. Not(nil) matches nothing.
func Not(e *Expr) *Expr {
	if e == nil {
		return None()
	}
	return &Expr{Op: OpNot, Args: []*Expr{e}}
}

// Walk calls fn for e and every node below it.
func (e *Expr) Walk(fn func(*Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, a := range e.Args {
		a.Walk(fn)
	}
}

// Validate reports malformed nodes.
func (e *Expr) Validate() error {
	var err error
	e.Walk(func(n *Expr) {
		if err != nil {
			return
		}
		switch n.Op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			if n.Field == "" {
				err = fmt.Errorf("%s without field", n.Op)
			} else if isNil(n.Value) {
				err = fmt.Errorf("%s on %q needs a value", n.Op, n.Field)
			}
		case OpContains:
			if _, ok := n.Value.(string); !ok || n.Field == "" {
				err = fmt.Errorf("contains on %q needs a text value", n.Field)
			}
		case OpIn, OpIsNull, OpNotNull:
			if n.Field == "" {
				err = fmt.Errorf("%s without field", n.Op)
			}
		case OpAnd, OpOr:
			for _, a := range n.Args {
				if a == nil {
					err = fmt.Errorf("%s with nil operand", n.Op)
				}
			}
		case OpNot:
			if len(n.Args) != 1 || n.Args[0] == nil {
				err = fmt.Errorf("not needs exactly one operand")
			}
		case OpNone:
		default:
			err = fmt.Errorf("unknown operator %q", n.Op)
		}
	})
	return err
}

func (e *Expr) String() string {
	if e == nil {
		return "true"
	}
	switch e.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, " "+string(e.Op)+" ") + ")"
	case OpNot:
		return "not " + e.Args[0].String()
	case OpNone:
		return "false"
	case OpIsNull, OpNotNull:
		return e.Field + " " + string(e.Op)
	case OpIn:
		return fmt.Sprintf("%s in %v", e.Field, e.Values)
	}
	return fmt.Sprintf("%s %s %v", e.Field, e.Op, deref(e.Value))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// deref unwraps pointers so *string and string compare alike. Nil pointers become nil.
func deref(v any) any {
	for v != nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	return nil
}

// Normalize unwraps pointer operands for drivers.
func Normalize(v any) any {
	return deref(v)
}
