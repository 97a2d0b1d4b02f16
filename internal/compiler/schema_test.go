package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

func TestCompileSchemaBasic(t *testing.T) {
	schema, err := CompileString(`
		tables: pets: {
			species: string
			price:   number | *0
			legs:    int | *4
			sold:    {type: "boolean", default: false}
		}
		values: {
			open:  bool | *true
			motto: "We sell pets"
		}
	`, "pets.cue")
	require.NoError(t, err)

	assert.Equal(t, store.TablesSchema{
		"pets": {
			"species": {Type: ir.TypeString},
			"price":   {Type: ir.TypeNumber, Default: float64(0)},
			"legs":    {Type: ir.TypeNumber, Default: float64(4)},
			"sold":    {Type: ir.TypeBoolean, Default: false},
		},
	}, schema.Tables)
	assert.Equal(t, store.ValuesSchema{
		"open":  {Type: ir.TypeBoolean, Default: true},
		"motto": {Type: ir.TypeString, Default: "We sell pets"},
	}, schema.Values)
	assert.Empty(t, Validate(schema))
}

func TestCompileSchemaValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`values: count: number`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)
	assert.Empty(t, schema.Tables)
	assert.Equal(t, store.ValuesSchema{"count": {Type: ir.TypeNumber}}, schema.Values)
}

func TestCompileSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"empty", `other: 1`, "needs tables or values"},
		{"list type", `tables: t: tags: [...string]`, "unsupported type kind"},
		{"mixed kinds", `values: v: string | number`, "unsupported type kind"},
		{"explicit without type", `values: v: {default: 1}`, "type is required"},
		{"explicit unknown type", `values: v: {type: "date"}`, "unknown type"},
		{"table not a struct", `tables: t: 5`, "struct of cell declarations"},
		{"syntax", `tables: {`, "cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := CompileString("values: {\n\tv: {type: \"date\"}\n}\n", "schema.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "values.v.type", ce.Field)
	assert.Contains(t, err.Error(), "schema.cue:2:")
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.cue")
	require.NoError(t, os.WriteFile(path, []byte(`tables: pets: species: string | *"dog"`), 0o600))

	schema, err := CompileFile(path)
	require.NoError(t, err)

	st := store.New()
	schema.Apply(st)
	st.SetRow("pets", "fido", map[string]any{"name": "Fido"})
	assert.Equal(t, ir.Row{"species": ir.String("dog")}, st.GetRow("pets", "fido"))
	assert.False(t, st.HasValuesSchema())

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.ErrorContains(t, err, "read schema")
}
