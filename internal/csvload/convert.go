package csvload

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// naValues are the source values read as NULL.
var naValues = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NULL": {}, "null": {},
	"NaN": {}, "nan": {}, "-NaN": {}, "-nan": {}, "None": {}, "<NA>": {},
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "1.#IND": {}, "-1.#IND": {},
	"1.#QNAN": {}, "-1.#QNAN": {},
}

// IsNull reports whether s is a null marker.
func IsNull(s string) bool {
	_, ok := naValues[s]
	return ok
}

// ConvertNumeric returns s as int64 when it holds an integral number that
// fits, as float64 when it holds any other number, and unchanged otherwise.
func ConvertNumeric(s string) any {
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsAny(t, "xX") {
		return s
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return s
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// ConvertValue converts one source field for column col.
func ConvertValue(raw string, col core.Column) any {
	if IsNull(raw) {
		return nil
	}
	if isBooleanType(col.DataType) {
		return toBool(raw)
	}
	return ConvertNumeric(raw)
}

func isBooleanType(dataType string) bool {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "boolean", "bool", "tinyint(1)":
		return true
	}
	return false
}

func toBool(raw string) bool {
	switch v := ConvertNumeric(raw).(type) {
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
		return b
	}
	return raw != ""
}
