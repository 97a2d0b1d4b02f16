package store

import (
	"errors"
	"fmt"

	"github.com/roach88/tabstore/internal/ir"
)

// GetTablesJSON renders all tables as a JSON object in insertion order.
func (s *Store) GetTablesJSON() string {
	return string(s.appendTablesJSON(nil))
}

// GetValuesJSON renders all values as a JSON object in insertion order.
func (s *Store) GetValuesJSON() string {
	return string(s.appendValuesJSON(nil))
}

// GetJSON renders the whole store as the two-element array
// [tables, values].
func (s *Store) GetJSON() string {
	buf := []byte{'['}
	buf = s.appendTablesJSON(buf)
	buf = append(buf, ',')
	buf = s.appendValuesJSON(buf)
	return string(append(buf, ']'))
}

func (s *Store) appendTablesJSON(buf []byte) []byte {
	buf = append(buf, '{')
	for t := s.tables.Oldest(); t != nil; t = t.Next() {
		if t != s.tables.Oldest() {
			buf = append(buf, ',')
		}
		buf = ir.AppendJSONString(buf, t.Key)
		buf = append(buf, ":{"...)
		for r := t.Value.rows.Oldest(); r != nil; r = r.Next() {
			if r != t.Value.rows.Oldest() {
				buf = append(buf, ',')
			}
			buf = ir.AppendJSONString(buf, r.Key)
			buf = append(buf, ':')
			buf = appendScalarsJSON(buf, r.Value)
		}
		buf = append(buf, '}')
	}
	return append(buf, '}')
}

func (s *Store) appendValuesJSON(buf []byte) []byte {
	return appendScalarsJSON(buf, s.values)
}

func appendScalarsJSON(buf []byte, m *rowMap) []byte {
	buf = append(buf, '{')
	for c := m.Oldest(); c != nil; c = c.Next() {
		if c != m.Oldest() {
			buf = append(buf, ',')
		}
		buf = ir.AppendJSONString(buf, c.Key)
		buf = append(buf, ':')
		buf = ir.AppendScalarJSON(buf, c.Value)
	}
	return append(buf, '}')
}

// SetTablesJSON parses text and applies it with SetTables. Malformed JSON
// returns an error and leaves the store unchanged.
func (s *Store) SetTablesJSON(text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("set tables json: %w", err)
	}
	s.SetTables(parsed)
	return nil
}

// SetValuesJSON parses text and applies it with SetValues.
func (s *Store) SetValuesJSON(text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("set values json: %w", err)
	}
	s.SetValues(parsed)
	return nil
}

// SetJSON parses a [tables, values] array and applies both in one
// transaction.
func (s *Store) SetJSON(text string) error {
	parsed, err := ir.ParseJSON([]byte(text))
	if err != nil {
		return fmt.Errorf("set json: %w", err)
	}
	pair, ok := parsed.([]any)
	if !ok || len(pair) != 2 {
		return errors.New("set json: content must be a [tables, values] array")
	}
	s.setContent(pair[0], pair[1])
	return nil
}
