package persist

import (
	"context"
	"fmt"

	"github.com/roach88/tabstore/internal/ir"
)

// Backend stores whole content snapshots.
type Backend interface {
	// Name identifies the backend in errors and logs.
	Name() string

	// Read returns the saved content. It reports false when nothing has
	// been saved yet.
	Read(ctx context.Context) (ir.Content, bool, error)

	// Write replaces the saved content.
	Write(ctx context.Context, content ir.Content) error

	Close() error
}

// Watcher is a Backend that can report changes made by other writers.
type Watcher interface {
	Backend

	// Watch calls onChange after the saved content may have changed, until
	// ctx is done. It returns once watching has started.
	Watch(ctx context.Context, onChange func()) error
}

// Kind names a backend implementation.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindBolt   Kind = "bolt"
	KindFile   Kind = "file"
)

// Open opens a backend of the given kind at path.
func Open(kind Kind, path string) (Backend, error) {
	switch kind {
	case KindSQLite, "":
		return OpenSQLite(path)
	case KindBolt:
		return OpenBolt(path)
	case KindFile:
		return NewFileBackend(path), nil
	}
	return nil, fmt.Errorf("unknown backend %q (want sqlite, bolt or file)", kind)
}

// decodeContent converts a decoded [tables, values] document into content.
// Objects may be ordered (from JSON) or plain maps (from msgpack).
func decodeContent(doc any) (ir.Content, error) {
	pair, ok := doc.([]any)
	if !ok || len(pair) != 2 {
		return ir.Content{}, fmt.Errorf("content must be a [tables, values] array, got %T", doc)
	}
	tables, err := decodeTables(pair[0])
	if err != nil {
		return ir.Content{}, err
	}
	values, err := decodeScalars(pair[1])
	if err != nil {
		return ir.Content{}, fmt.Errorf("values: %w", err)
	}
	return ir.Content{Tables: tables, Values: ir.Values(values)}, nil
}

func decodeTables(v any) (ir.Tables, error) {
	tableMap, err := object(v)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	tables := make(ir.Tables, len(tableMap))
	for tableID, rawTable := range tableMap {
		rowMap, err := object(rawTable)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", tableID, err)
		}
		table := make(ir.Table, len(rowMap))
		for rowID, rawRow := range rowMap {
			row, err := decodeScalars(rawRow)
			if err != nil {
				return nil, fmt.Errorf("row %q/%q: %w", tableID, rowID, err)
			}
			table[rowID] = ir.Row(row)
		}
		tables[tableID] = table
	}
	return tables, nil
}

func decodeScalars(v any) (map[string]ir.Scalar, error) {
	m, err := object(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ir.Scalar, len(m))
	for id, raw := range m {
		scalar, ok := ir.ToScalar(raw)
		if !ok {
			return nil, fmt.Errorf("%q: %T is not a string, number or boolean", id, raw)
		}
		out[id] = scalar
	}
	return out, nil
}

func object(v any) (map[string]any, error) {
	switch o := v.(type) {
	case map[string]any:
		return o, nil
	case *ir.Object:
		m := make(map[string]any, o.Len())
		for pair := o.Oldest(); pair != nil; pair = pair.Next() {
			m[pair.Key] = pair.Value
		}
		return m, nil
	}
	return nil, fmt.Errorf("expected an object, got %T", v)
}
