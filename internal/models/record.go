package models

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Record is a canonical metric record: a JSON object whose numbers are kept
// as json.Number so values survive a snapshot round trip unchanged.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Str returns the field as a string, or "" when missing or not a string.
func (r Record) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Num returns the field as a float64. Strings are parsed leniently; anything
// unparseable is 0.
func (r Record) Num(field string) float64 {
	return ToFloat(r[field])
}

// FirstTruthy returns the first field whose value is present and truthy,
// in the order given.
func (r Record) FirstTruthy(fields ...string) (any, bool) {
	for _, f := range fields {
		if v, ok := r[f]; ok && Truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// Truthy follows JSON-ish truthiness: null, false, 0, "" and empty
// containers are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// ToFloat coerces a decoded JSON value to float64.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ToInt coerces a decoded JSON value to an int. Strings must hold an integer
// literal; floats are truncated toward zero. Failures yield 0.
func ToInt(v any) int {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return int(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return i
	default:
		return int(ToFloat(v))
	}
}

// KeyPart renders a field value for use inside a dedup key. Numbers are
// canonicalized so 5 and 5.0 collide, while the string "5" stays distinct.
func KeyPart(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case json.Number, float64, float32, int, int64:
		return "n:" + strconv.FormatFloat(ToFloat(x), 'g', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "?"
		}
		return "j:" + string(b)
	}
}
