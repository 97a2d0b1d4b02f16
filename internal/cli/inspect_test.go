package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/persist"
)

// importPets saves petsJSON to a new sqlite database and returns its path.
func importPets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "pets.db")
	content := writeFile(t, filepath.Join(dir, "pets.json"), petsJSON)
	_, err := executeRoot(t, "--db", db, "import", content)
	require.NoError(t, err)
	return db
}

func TestInspectSummary(t *testing.T) {
	clearEnv(t)
	db := importPets(t)

	out, err := executeRoot(t, "--db", db, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "Database: "+db+" (sqlite)")
	assert.Contains(t, out, "Tables (1):")
	assert.Contains(t, out, "  pets: 2 row(s), cells: price, species")
	assert.Contains(t, out, "Values (1): open")
	assert.Contains(t, out, "Hash:")
	assert.NotContains(t, out, "Rows of")
}

func TestInspectRows(t *testing.T) {
	clearEnv(t)
	db := importPets(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"by row id", nil, []string{"felix", "fido"}},
		{"by cell", []string{"--sort-by", "price"}, []string{"felix", "fido"}},
		{"descending", []string{"--sort-by", "price", "--desc"}, []string{"fido", "felix"}},
		{"limited", []string{"--sort-by", "price", "--desc", "--limit", "1"}, []string{"fido"}},
		{"offset", []string{"--offset", "1"}, []string{"fido"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "--format", "json", "inspect", "--table", "pets"}, tt.args...)
			out, err := executeRoot(t, args...)
			require.NoError(t, err)

			var response struct {
				Data InspectResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &response))
			ids := make([]string, len(response.Data.Rows))
			for i, r := range response.Data.Rows {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestInspectRowText(t *testing.T) {
	clearEnv(t)
	db := importPets(t)

	out, err := executeRoot(t, "--db", db, "inspect", "--table", "pets", "--sort-by", "price", "--desc", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Rows of pets:\n  fido {\"price\":5,\"species\":\"dog\"}\n")
}

func TestInspectErrors(t *testing.T) {
	clearEnv(t)
	db := importPets(t)

	t.Run("unknown table", func(t *testing.T) {
		out, err := executeRoot(t, "--db", db, "inspect", "--table", "owners")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "table not found: owners")
	})

	t.Run("missing database", func(t *testing.T) {
		out, err := executeRoot(t, "--db", filepath.Join(t.TempDir(), "none.db"), "inspect")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "database not found")
	})
}

func TestInspectNothingSaved(t *testing.T) {
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "empty.db")
	backend, err := persist.OpenSQLite(db)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	out, err := executeRoot(t, "--db", db, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "No content saved.")
}

func TestInspectCorruptFile(t *testing.T) {
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "corrupt.json")
	writeFile(t, db, "not json")

	out, err := executeRoot(t, "--backend", "file", "--db", db, "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to load content")
}
