package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/shopspring/decimal"
)

const (
	msgRequired = "Missing data for required field."
	msgNull     = "Field may not be null."
	msgInteger  = "Not a valid integer."
	msgString   = "Not a valid string."
	msgDecimal  = "Not a valid decimal."
	msgDateTime = "Not a valid datetime."
	msgBoolean  = "Not a valid boolean."
	msgList     = "Not a valid list."
)

// accepted datetime layouts, tried in order
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

var (
	truthy = map[string]bool{"true": true, "t": true, "1": true, "on": true, "yes": true, "y": true}
	falsy  = map[string]bool{"false": true, "f": true, "0": true, "off": true, "no": true, "n": true}
)

// coerce converts a decoded JSON value into the Go representation of the
// field's semantic type. All problems with the value are returned as messages.
func coerce(f *catalog.Field, v any) (any, []string) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, []string{msgNull}
	}

	switch f.Type {
	case catalog.Integer:
		n, err := toInt64(v)
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, []string{msgInteger}
		}
		return n, nil
	case catalog.SmallInteger:
		n, err := toInt64(v)
		if err != nil {
			return nil, []string{msgInteger}
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, []string{fmt.Sprintf("Must be between %d and %d.", math.MinInt16, math.MaxInt16)}
		}
		return n, nil
	case catalog.String, catalog.Text:
		s, ok := v.(string)
		if !ok {
			return nil, []string{msgString}
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return nil, []string{fmt.Sprintf("Longer than maximum length %d.", f.MaxLength)}
		}
		return s, nil
	case catalog.Numeric:
		return coerceDecimal(f, v)
	case catalog.DateTime:
		t, err := toTime(v)
		if err != nil {
			return nil, []string{msgDateTime}
		}
		return t, nil
	case catalog.Boolean:
		b, err := toBool(v)
		if err != nil {
			return nil, []string{msgBoolean}
		}
		return b, nil
	case catalog.Enum:
		s, ok := v.(string)
		if !ok {
			return nil, []string{fmt.Sprintf("Invalid enum member %v", v)}
		}
		if m, ok := f.Enum.ByName(s); ok {
			return m.Value, nil
		}
		if m, ok := f.Enum.ByValue(s); ok {
			return m.Value, nil
		}
		return nil, []string{fmt.Sprintf("Invalid enum member %s", s)}
	}
	return nil, []string{fmt.Sprintf("Unsupported field type %s.", f.Type)}
}

func coerceDecimal(f *catalog.Field, v any) (any, []string) {
	var d decimal.Decimal
	var err error
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	default:
		n, ierr := toInt64(v)
		if ierr != nil {
			return nil, []string{msgDecimal}
		}
		d = decimal.NewFromInt(n)
	}
	if err != nil {
		return nil, []string{msgDecimal}
	}

	if f.Scale > 0 {
		d = d.Round(int32(f.Scale))
	}
	if f.Precision > 0 {
		maxInt := decimal.New(1, int32(f.Precision-f.Scale))
		if d.Abs().GreaterThanOrEqual(maxInt) {
			return nil, []string{fmt.Sprintf("Must have at most %d digits with %d decimal places.", f.Precision, f.Scale)}
		}
	}
	return d, nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not integral", x)
		}
		return int64(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		fl, err := x.Float64()
		if err != nil || fl != math.Trunc(fl) {
			return 0, fmt.Errorf("%s is not an integer", x)
		}
		return int64(fl), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized datetime %q", x)
	}
	return time.Time{}, fmt.Errorf("unexpected type %T", v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
	case json.Number, int, int64, float64:
		n, err := toInt64(x)
		if err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

// dumpValue converts a stored value into its JSON form.
func dumpValue(f *catalog.Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Type {
	case catalog.Enum:
		if s, ok := v.(string); ok {
			if m, ok := f.Enum.ByValue(s); ok {
				return m.Name
			}
		}
	case catalog.Numeric:
		if d, ok := v.(decimal.Decimal); ok {
			return json.Number(d.String())
		}
	}
	return v
}
