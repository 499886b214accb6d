package core

import "fmt"

// Row is a single record handed to a writer. It is either a PositionalRow
// already in destination column order or a NamedRow keyed by column name.
type Row interface {
	// Positional resolves the row into destination column order.
	Positional(columns []string) ([]any, error)
}

// PositionalRow is a row whose values follow the destination column order.
type PositionalRow []any

// NamedRow is a row keyed by destination column name.
type NamedRow map[string]any

// Positional returns the row unchanged. When columns are known the length
// must match.
func (r PositionalRow) Positional(columns []string) ([]any, error) {
	if len(columns) > 0 && len(r) != len(columns) {
		return nil, fmt.Errorf("row has %d values, table has %d columns", len(r), len(columns))
	}
	return []any(r), nil
}

// Positional orders the mapping by columns. Every column must be present;
// keys that are not destination columns are rejected.
func (r NamedRow) Positional(columns []string) ([]any, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("named row requires resolved columns")
	}
	values := make([]any, len(columns))
	for i, col := range columns {
		v, ok := r[col]
		if !ok {
			return nil, fmt.Errorf("row is missing column %q", col)
		}
		values[i] = v
	}
	if len(r) > len(columns) {
		known := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			known[col] = struct{}{}
		}
		for k := range r {
			if _, ok := known[k]; !ok {
				return nil, fmt.Errorf("row has unknown column %q", k)
			}
		}
	}
	return values, nil
}
