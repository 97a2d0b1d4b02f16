package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tabstore/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - cells, store_values and saves tables
const currentSchemaVersion = 1

// SQLiteBackend keeps content in a SQLite database, one row per cell and
// per value.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return string(KindSQLite) }

// DB returns the underlying sql.DB for direct queries.
func (b *SQLiteBackend) DB() *sql.DB {
	return b.db
}

// Read implements Backend.
func (b *SQLiteBackend) Read(ctx context.Context) (ir.Content, bool, error) {
	var hash string
	err := b.db.QueryRowContext(ctx, "SELECT content_hash FROM saves WHERE id = 1").Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Content{}, false, nil
	}
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}

	content := ir.Content{Tables: ir.Tables{}, Values: ir.Values{}}
	rows, err := b.db.QueryContext(ctx, `
		SELECT table_id, row_id, cell_id, type, value
		FROM cells
		ORDER BY seq`)
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	defer rows.Close()
	for rows.Next() {
		var tableID, rowID, cellID, typ string
		var raw any
		if err := rows.Scan(&tableID, &rowID, &cellID, &typ, &raw); err != nil {
			return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
		}
		cell, err := scanScalar(typ, raw)
		if err != nil {
			return ir.Content{}, false, newError(ErrCodeDecodeFailed, b.Name(),
				fmt.Errorf("cell %q/%q/%q: %w", tableID, rowID, cellID, err))
		}
		table, ok := content.Tables[tableID]
		if !ok {
			table = ir.Table{}
			content.Tables[tableID] = table
		}
		row, ok := table[rowID]
		if !ok {
			row = ir.Row{}
			table[rowID] = row
		}
		row[cellID] = cell
	}
	if err := rows.Err(); err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}

	valueRows, err := b.db.QueryContext(ctx, "SELECT value_id, type, value FROM store_values ORDER BY seq")
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	defer valueRows.Close()
	for valueRows.Next() {
		var valueID, typ string
		var raw any
		if err := valueRows.Scan(&valueID, &typ, &raw); err != nil {
			return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
		}
		value, err := scanScalar(typ, raw)
		if err != nil {
			return ir.Content{}, false, newError(ErrCodeDecodeFailed, b.Name(),
				fmt.Errorf("value %q: %w", valueID, err))
		}
		content.Values[valueID] = value
	}
	if err := valueRows.Err(); err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	return content, true, nil
}

// Write implements Backend. The whole content is replaced in one SQL
// transaction.
func (b *SQLiteBackend) Write(ctx context.Context, content ir.Content) error {
	hash, err := ir.ContentHash(content)
	if err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	defer tx.Rollback()

	if err := writeContent(ctx, tx, content); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO saves (id, content_hash, saved_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET content_hash = excluded.content_hash, saved_at = excluded.saved_at`,
		hash, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	if err := tx.Commit(); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	return nil
}

func writeContent(ctx context.Context, tx *sql.Tx, content ir.Content) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cells"); err != nil {
		return fmt.Errorf("clear cells: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM store_values"); err != nil {
		return fmt.Errorf("clear values: %w", err)
	}

	insertCell, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (table_id, row_id, cell_id, type, value, seq)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell insert: %w", err)
	}
	defer insertCell.Close()

	seq := 0
	for _, tableID := range ir.SortedKeys(content.Tables) {
		table := content.Tables[tableID]
		for _, rowID := range ir.SortedKeys(table) {
			row := table[rowID]
			for _, cellID := range ir.SortedKeys(row) {
				cell := row[cellID]
				if _, err := insertCell.ExecContext(ctx, tableID, rowID, cellID, string(cell.Type()), sqlValue(cell), seq); err != nil {
					return fmt.Errorf("insert cell %q/%q/%q: %w", tableID, rowID, cellID, err)
				}
				seq++
			}
		}
	}

	insertValue, err := tx.PrepareContext(ctx, `
		INSERT INTO store_values (value_id, type, value, seq)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare value insert: %w", err)
	}
	defer insertValue.Close()
	for i, valueID := range ir.SortedKeys(content.Values) {
		value := content.Values[valueID]
		if _, err := insertValue.ExecContext(ctx, valueID, string(value.Type()), sqlValue(value), i); err != nil {
			return fmt.Errorf("insert value %q: %w", valueID, err)
		}
	}
	return nil
}

func sqlValue(s ir.Scalar) any {
	switch v := s.(type) {
	case ir.Bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return ir.Native(s)
	}
}

func scanScalar(typ string, raw any) (ir.Scalar, error) {
	t, ok := ir.ParseType(typ)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", typ)
	}
	switch t {
	case ir.TypeString:
		switch v := raw.(type) {
		case string:
			return ir.String(v), nil
		case []byte:
			return ir.String(v), nil
		}
	case ir.TypeNumber:
		switch v := raw.(type) {
		case float64:
			return ir.Number(v), nil
		case int64:
			return ir.Number(v), nil
		}
	case ir.TypeBoolean:
		if v, ok := raw.(int64); ok {
			return ir.Bool(v != 0), nil
		}
	}
	return nil, fmt.Errorf("%T does not hold a %s", raw, t)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
