package pgx

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// normalize converts a scanned value to the representation the resource
// layer works with: int64 for integers, decimal.Decimal for numerics, string
// for enums and text.
func normalize(f *catalog.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case catalog.Integer, catalog.SmallInteger:
		return toInt64(v)
	case catalog.Numeric:
		return toDecimal(v)
	case catalog.String, catalog.Text, catalog.Enum:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
		return fmt.Sprint(v), nil
	case catalog.DateTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case pgtype.Timestamp:
			if !x.Valid {
				return nil, nil
			}
			return x.Time, nil
		}
	}
	return v, nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int:
		return int64(x), nil
	case string:
		// domains over integer may arrive as text
		return strconv.ParseInt(x, 10, 64)
	case pgtype.Numeric:
		n, err := x.Int64Value()
		if err != nil {
			return 0, err
		}
		return n.Int64, nil
	}
	return 0, fmt.Errorf("unexpected integer value %T", v)
}

func toDecimal(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case pgtype.Numeric:
		if !x.Valid {
			return nil, nil
		}
		if x.NaN || x.InfinityModifier != pgtype.Finite {
			return nil, fmt.Errorf("numeric value is not finite")
		}
		return decimal.NewFromBigInt(x.Int, x.Exp), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("numeric value is not finite")
		}
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	}
	return nil, fmt.Errorf("unexpected numeric value %T", v)
}

// int64Keys converts primary keys for use as a bigint array parameter.
func int64Keys(keys []any) ([]int64, error) {
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		n, err := toInt64(k)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
