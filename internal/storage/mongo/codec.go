package mongo

import (
	"fmt"
	"regexp"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/specification"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// key maps a field name to its document key. Ids are stored in _id.
func key(field string) string {
	if field == domain.FieldID {
		return "_id"
	}
	return field
}

// encode converts a field value to its stored BSON form. Identifiers are kept
// as canonical strings so they stay readable in the shell.
func encode(v any) (any, error) {
	switch x := specification.Normalize(v).(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return x.String(), nil
	case decimal.Decimal:
		d, err := primitive.ParseDecimal128(x.String())
		if err != nil {
			return nil, fmt.Errorf("failed to encode decimal %s: %w", x, err)
		}
		return d, nil
	case time.Time:
		return x.UTC(), nil
	case int:
		return int64(x), nil
	default:
		return x, nil
	}
}

func toDocument(s *storage.Schema, r storage.Record, columns []string) (bson.D, error) {
	doc := make(bson.D, 0, len(columns))
	for _, c := range columns {
		v, err := encode(r.Value(c))
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: key(c), Value: v})
	}
	return doc, nil
}

func filter(e *specification.Expr) (bson.D, error) {
	if e == nil {
		return bson.D{}, nil
	}
	switch e.Op {
	case specification.OpAnd, specification.OpOr:
		parts := make(bson.A, len(e.Args))
		for i, a := range e.Args {
			f, err := filter(a)
			if err != nil {
				return nil, err
			}
			parts[i] = f
		}
		op := "$and"
		if e.Op == specification.OpOr {
			op = "$or"
		}
		return bson.D{{Key: op, Value: parts}}, nil
	case specification.OpNot:
		inner, err := filter(e.Args[0])
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil
	case specification.OpNone:
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}, nil
	case specification.OpIsNull:
		return bson.D{{Key: key(e.Field), Value: nil}}, nil
	case specification.OpNotNull:
		return bson.D{{Key: key(e.Field), Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
	case specification.OpIn:
		values := make(bson.A, len(e.Values))
		for i, v := range e.Values {
			enc, err := encode(v)
			if err != nil {
				return nil, err
			}
			values[i] = enc
		}
		return bson.D{{Key: key(e.Field), Value: bson.D{{Key: "$in", Value: values}}}}, nil
	case specification.OpContains:
		s, _ := e.Value.(string)
		re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		return bson.D{{Key: key(e.Field), Value: re}}, nil
	}

	ops := map[specification.Op]string{
		specification.OpEq:  "$eq",
		specification.OpNe:  "$ne",
		specification.OpGt:  "$gt",
		specification.OpGte: "$gte",
		specification.OpLt:  "$lt",
		specification.OpLte: "$lte",
	}
	op, ok := ops[e.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidSpecification, e.Op)
	}
	v, err := encode(e.Value)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: key(e.Field), Value: bson.D{{Key: op, Value: v}}}}, nil
}

func sortDoc(order []specification.Order) bson.D {
	d := make(bson.D, len(order))
	for i, o := range order {
		dir := 1
		if o.Desc {
			dir = -1
		}
		d[i] = bson.E{Key: key(o.Field), Value: dir}
	}
	return d
}

// decode fills a fresh record from raw.
func decode(s *storage.Schema, raw bson.Raw) (storage.Record, error) {
	r := s.New()
	targets := r.Targets()
	for i, c := range s.Columns {
		rv, err := raw.LookupErr(key(c))
		if err != nil {
			continue
		}
		if err := assign(targets[i], rv); err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s: %w", s.Collection, c, err)
		}
	}
	return r, nil
}

func assign(target any, rv bson.RawValue) error {
	null := rv.Type == bson.TypeNull || rv.Type == bson.TypeUndefined
	switch t := target.(type) {
	case *uuid.UUID:
		id, err := uuid.Parse(rv.StringValue())
		if err != nil {
			return err
		}
		*t = id
	case **uuid.UUID:
		if null {
			*t = nil
			return nil
		}
		id, err := uuid.Parse(rv.StringValue())
		if err != nil {
			return err
		}
		*t = &id
	case *string:
		if !null {
			*t = rv.StringValue()
		}
	case **string:
		if null {
			*t = nil
			return nil
		}
		s := rv.StringValue()
		*t = &s
	case *bool:
		if !null {
			*t = rv.Boolean()
		}
	case *int:
		if null {
			return nil
		}
		switch rv.Type {
		case bson.TypeInt32:
			*t = int(rv.Int32())
		case bson.TypeInt64:
			*t = int(rv.Int64())
		case bson.TypeDouble:
			*t = int(rv.Double())
		default:
			return fmt.Errorf("unexpected bson type %s for int", rv.Type)
		}
	case *time.Time:
		if !null {
			*t = rv.Time().UTC()
		}
	case **time.Time:
		if null {
			*t = nil
			return nil
		}
		tm := rv.Time().UTC()
		*t = &tm
	case *decimal.Decimal:
		if null {
			return nil
		}
		d, err := toDecimal(rv)
		if err != nil {
			return err
		}
		*t = d
	case **decimal.Decimal:
		if null {
			*t = nil
			return nil
		}
		d, err := toDecimal(rv)
		if err != nil {
			return err
		}
		*t = &d
	default:
		return fmt.Errorf("unsupported target %T", target)
	}
	return nil
}

func toDecimal(rv bson.RawValue) (decimal.Decimal, error) {
	if d, ok := rv.Decimal128OK(); ok {
		return decimal.NewFromString(d.String())
	}
	if f, ok := rv.DoubleOK(); ok {
		return decimal.NewFromFloat(f), nil
	}
	return decimal.Decimal{}, fmt.Errorf("unexpected bson type %s for decimal", rv.Type)
}
