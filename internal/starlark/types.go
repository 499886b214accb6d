// Package starlark runs migration rules written as Starlark scripts.
//
// A rule script is a .star file defining exec(inputs, outputs). Inputs and
// outputs are lists of facade values wrapping adapter.Facade; rows cross the
// boundary as dicts converted with GoToStarlark and ToGo.
package starlark

import (
	"fmt"
	"math/big"
	"time"

	"go.starlark.net/starlark"
)

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: nil, string, []byte, bool, signed and unsigned integers,
// float32, float64, time.Time, []string, []any, map[string]any.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case []byte:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case int:
		return starlark.MakeInt(val), nil
	case int8:
		return starlark.MakeInt64(int64(val)), nil
	case int16:
		return starlark.MakeInt64(int64(val)), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint:
		return starlark.MakeUint(val), nil
	case uint8:
		return starlark.MakeUint64(uint64(val)), nil
	case uint16:
		return starlark.MakeUint64(uint64(val)), nil
	case uint32:
		return starlark.MakeUint64(uint64(val)), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case *big.Int:
		return starlark.MakeBigInt(val), nil

	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil

	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	case starlark.Value:
		return val, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, *big.Int, float64, bool, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Bytes:
		return []byte(val), nil

	case starlark.Int:
		if i64, ok := val.Int64(); ok {
			return i64, nil
		}
		return val.BigInt(), nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		return sequenceToGo(val, "list")

	case starlark.Tuple:
		return sequenceToGo(val, "tuple")

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func sequenceToGo(seq starlark.Indexable, kind string) ([]any, error) {
	result := make([]any, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		gv, err := ToGo(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s index %d: %w", kind, i, err)
		}
		result[i] = gv
	}
	return result, nil
}

// rowToStarlark converts a cursor row into a Starlark dict with keys in
// column order.
func rowToStarlark(columns []string, row map[string]any) (*starlark.Dict, error) {
	dict := starlark.NewDict(len(row))
	for _, col := range columns {
		sv, err := GoToStarlark(row[col])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		if err := dict.SetKey(starlark.String(col), sv); err != nil {
			return nil, err
		}
	}
	return dict, nil
}
