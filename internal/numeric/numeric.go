// Package numeric normalizes values returned by the database driver.
package numeric

import (
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrNotNumeric is returned when a value cannot be read as a number.
var ErrNotNumeric = eris.New("numeric: value is not numeric")

// Float coerces v to float64. ok is false when v is SQL NULL. A value of an
// unsupported type, or a non-finite number, yields ErrNotNumeric.
func Float(v any) (f float64, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int64:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int16:
		return float64(x), true, nil
	case int8:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case uint64:
		return float64(x), true, nil
	case uint32:
		return float64(x), true, nil
	case uint:
		return float64(x), true, nil
	case decimal.Decimal:
		return finite(x.InexactFloat64())
	case *decimal.Decimal:
		if x == nil {
			return 0, false, nil
		}
		return finite(x.InexactFloat64())
	case pgtype.Numeric:
		return fromNumeric(x)
	case *pgtype.Numeric:
		if x == nil {
			return 0, false, nil
		}
		return fromNumeric(*x)
	case pgtype.Float8:
		if !x.Valid {
			return 0, false, nil
		}
		return finite(x.Float64)
	case pgtype.Int8:
		if !x.Valid {
			return 0, false, nil
		}
		return float64(x.Int64), true, nil
	case pgtype.Int4:
		if !x.Valid {
			return 0, false, nil
		}
		return float64(x.Int32), true, nil
	case string:
		return parse(x)
	case []byte:
		return parse(string(x))
	default:
		return 0, false, eris.Wrapf(ErrNotNumeric, "unsupported type %T", v)
	}
}

// Normalize converts exact-decimal and numeric values to float64 and
// narrower integers to int64. Other values pass through unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric, *pgtype.Numeric, decimal.Decimal, *decimal.Decimal, pgtype.Float8, float32:
		f, ok, err := Float(x)
		if err != nil || !ok {
			return nil
		}
		return f
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case int:
		return int64(x)
	case pgtype.Int8:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case pgtype.Int4:
		if !x.Valid {
			return nil
		}
		return int64(x.Int32)
	default:
		return v
	}
}

func fromNumeric(n pgtype.Numeric) (float64, bool, error) {
	if !n.Valid {
		return 0, false, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, false, eris.Wrap(ErrNotNumeric, "non-finite numeric")
	}
	f, err := n.Float64Value()
	if err != nil {
		return 0, false, eris.Wrap(err, "numeric: convert numeric")
	}
	return finite(f.Float64)
}

func parse(s string) (float64, bool, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, eris.Wrapf(ErrNotNumeric, "parse %q", s)
	}
	return finite(f)
}

func finite(f float64) (float64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, eris.Wrap(ErrNotNumeric, "non-finite value")
	}
	return f, true, nil
}
