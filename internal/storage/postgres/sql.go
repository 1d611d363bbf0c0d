package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/jackc/pgx/v5"
)

// builder accumulates positional arguments while SQL is rendered.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, specification.Normalize(v))
	return "$" + strconv.Itoa(len(b.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (b *builder) where(e *specification.Expr) string {
	if e == nil {
		return "TRUE"
	}
	switch e.Op {
	case specification.OpAnd, specification.OpOr:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = b.where(a)
		}
		joiner := " AND "
		if e.Op == specification.OpOr {
			joiner = " OR "
		}
		return "(" + strings.Join(parts, joiner) + ")"
	case specification.OpNot:
		return "NOT COALESCE(" + b.where(e.Args[0]) + ", FALSE)"
	case specification.OpNone:
		return "FALSE"
	case specification.OpIsNull:
		return ident(e.Field) + " IS NULL"
	case specification.OpNotNull:
		return ident(e.Field) + " IS NOT NULL"
	case specification.OpIn:
		if len(e.Values) == 0 {
			return "FALSE"
		}
		params := make([]string, len(e.Values))
		for i, v := range e.Values {
			params[i] = b.arg(v)
		}
		return ident(e.Field) + " IN (" + strings.Join(params, ", ") + ")"
	case specification.OpContains:
		s, _ := e.Value.(string)
		return ident(e.Field) + " ILIKE " + b.arg("%"+likeEscaper.Replace(s)+"%") + ` ESCAPE '\'`
	}

	var op string
	switch e.Op {
	case specification.OpEq:
		op = "="
	case specification.OpNe:
		op = "IS DISTINCT FROM"
	case specification.OpGt:
		op = ">"
	case specification.OpGte:
		op = ">="
	case specification.OpLt:
		op = "<"
	case specification.OpLte:
		op = "<="
	default:
		panic(fmt.Sprintf("postgres: unsupported operator %q", e.Op))
	}
	return ident(e.Field) + " " + op + " " + b.arg(e.Value)
}

func selectSQL(s *storage.Schema, q specification.Query) (string, []any) {
	var b builder
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columnList(s.Columns))
	sb.WriteString(" FROM ")
	sb.WriteString(ident(s.Collection))
	sb.WriteString(" WHERE ")
	sb.WriteString(b.where(q.Where))
	if len(q.Order) > 0 {
		keys := make([]string, len(q.Order))
		for i, o := range q.Order {
			keys[i] = ident(o.Field)
			if o.Desc {
				keys[i] += " DESC"
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	if q.Take > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.arg(q.Take))
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.arg(q.Skip))
	}
	return sb.String(), b.args
}

func countSQL(s *storage.Schema, where *specification.Expr) (string, []any) {
	var b builder
	sql := "SELECT COUNT(*) FROM " + ident(s.Collection) + " WHERE " + b.where(where)
	return sql, b.args
}

func insertSQL(s *storage.Schema, r storage.Record) (string, []any) {
	var b builder
	params := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		params[i] = b.arg(r.Value(c))
	}
	sql := "INSERT INTO " + ident(s.Collection) + " (" + columnList(s.Columns) + ") VALUES (" + strings.Join(params, ", ") + ")"
	return sql, b.args
}

// updateSQL writes every mutable column. Immutable columns are never part of
// the statement, so a stale CreatedAt on the record cannot reach the table.
func updateSQL(s *storage.Schema, r storage.Record) (string, []any) {
	var b builder
	mutable := s.Mutable()
	sets := make([]string, len(mutable))
	for i, c := range mutable {
		sets[i] = ident(c) + " = " + b.arg(r.Value(c))
	}
	sql := "UPDATE " + ident(s.Collection) + " SET " + strings.Join(sets, ", ") + " WHERE " + ident("id") + " = " + b.arg(r.Key())
	return sql, b.args
}

func deleteSQL(s *storage.Schema, id any) (string, []any) {
	var b builder
	return "DELETE FROM " + ident(s.Collection) + " WHERE " + ident("id") + " = " + b.arg(id), b.args
}
