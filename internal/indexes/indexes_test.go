package indexes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

func petStore() *store.Store {
	s := store.New()
	s.SetTable("pets", map[string]any{
		"fido":  map[string]any{"species": "dog", "price": 4},
		"felix": map[string]any{"species": "cat", "price": 5},
		"cujo":  map[string]any{"species": "dog", "price": 3},
	})
	return s
}

type recorder struct {
	events []string
}

func (r *recorder) sliceIDs(_ *Indexes, indexID string) {
	r.events = append(r.events, "ids:"+indexID)
}

func (r *recorder) sliceRowIDs(_ *Indexes, indexID, sliceID string) {
	r.events = append(r.events, "rows:"+indexID+"/"+sliceID)
}

func TestIndexBySliceCell(t *testing.T) {
	s := petStore()
	ix := New(s)

	require.NoError(t, ix.SetIndexDefinition("bySpecies", "pets", "species", "price", false))
	require.NoError(t, ix.SetIndexDefinition("bySpeciesDesc", "pets", "species", "price", true))

	assert.Equal(t, []string{"dog", "cat"}, ix.GetSliceIDs("bySpecies"))
	assert.Equal(t, []string{"cujo", "fido"}, ix.GetSliceRowIDs("bySpecies", "dog"))
	assert.Equal(t, []string{"fido", "cujo"}, ix.GetSliceRowIDs("bySpeciesDesc", "dog"))
	assert.True(t, ix.HasSlice("bySpecies", "cat"))
	assert.False(t, ix.HasSlice("bySpecies", "bird"))
	assert.Equal(t, []string{"bySpecies", "bySpeciesDesc"}, ix.GetIndexIDs())
	tableID, ok := ix.GetTableID("bySpecies")
	require.True(t, ok)
	assert.Equal(t, "pets", tableID)
}

func TestIndexFollowsRowChanges(t *testing.T) {
	s := petStore()
	ix := New(s)
	require.NoError(t, ix.SetIndexDefinition("bySpecies", "pets", "species", "price", false))
	rec := &recorder{}
	ix.AddSliceIDsListener(nil, rec.sliceIDs)
	ix.AddSliceRowIDsListener("bySpecies", nil, rec.sliceRowIDs)

	s.SetCell("pets", "felix", "species", "dog")
	assert.Equal(t, []string{"dog"}, ix.GetSliceIDs("bySpecies"))
	assert.Equal(t, []string{"cujo", "fido", "felix"}, ix.GetSliceRowIDs("bySpecies", "dog"))
	assert.Equal(t, []string{"ids:bySpecies", "rows:bySpecies/dog", "rows:bySpecies/cat"}, rec.events)

	rec.events = nil
	s.SetCell("pets", "cujo", "price", 3.5)
	assert.Empty(t, rec.events)

	s.SetCell("pets", "cujo", "price", 10)
	assert.Equal(t, []string{"fido", "felix", "cujo"}, ix.GetSliceRowIDs("bySpecies", "dog"))
	assert.Equal(t, []string{"rows:bySpecies/dog"}, rec.events)

	rec.events = nil
	s.DelTable("pets")
	assert.Empty(t, ix.GetSliceIDs("bySpecies"))
	assert.Equal(t, []string{"ids:bySpecies", "rows:bySpecies/dog"}, rec.events)
}

func TestIndexWithoutSliceOrSort(t *testing.T) {
	s := petStore()
	ix := New(s)

	require.NoError(t, ix.SetIndexDefinition("all", "pets", nil, "", false))
	require.NoError(t, ix.SetIndexDefinition("byColor", "pets", "color", "", false))

	assert.Equal(t, []string{""}, ix.GetSliceIDs("all"))
	assert.Equal(t, []string{"cujo", "felix", "fido"}, ix.GetSliceRowIDs("all", ""))
	assert.Equal(t, []string{""}, ix.GetSliceIDs("byColor"))

	s.SetCell("pets", "fido", "color", "brown")
	assert.Equal(t, []string{"", "brown"}, ix.GetSliceIDs("byColor"))
}

func TestIndexWithSliceFunc(t *testing.T) {
	s := store.New()
	s.SetTable("posts", map[string]any{
		"p1": map[string]any{"tags": "go,db"},
		"p2": map[string]any{"tags": "db"},
		"p3": map[string]any{"tags": "go,go"},
	})
	ix := New(s)
	byTag := SliceFunc(func(getCell func(string) ir.Scalar, _ string) []string {
		tags, _ := getCell("tags").(ir.String)
		return strings.Split(string(tags), ",")
	})

	require.NoError(t, ix.SetIndexDefinition("byTag", "posts", byTag, "", false))

	assert.Equal(t, []string{"go", "db"}, ix.GetSliceIDs("byTag"))
	assert.Equal(t, []string{"p1", "p3"}, ix.GetSliceRowIDs("byTag", "go"))
	assert.Equal(t, []string{"p1", "p2"}, ix.GetSliceRowIDs("byTag", "db"))

	s.SetCell("posts", "p1", "tags", "rust")
	assert.Equal(t, []string{"go", "db", "rust"}, ix.GetSliceIDs("byTag"))
	assert.Equal(t, []string{"p3"}, ix.GetSliceRowIDs("byTag", "go"))
}

func TestIndexDefinitionLifecycle(t *testing.T) {
	s := petStore()
	ix := New(s)
	rec := &recorder{}
	ix.AddSliceIDsListener("bySpecies", rec.sliceIDs)
	ix.AddSliceRowIDsListener(nil, nil, rec.sliceRowIDs)

	require.NoError(t, ix.SetIndexDefinition("bySpecies", "pets", "species", "", false))
	assert.Equal(t, []string{"ids:bySpecies", "rows:bySpecies/dog", "rows:bySpecies/cat"}, rec.events)

	rec.events = nil
	ix.DelIndexDefinition("bySpecies")
	assert.False(t, ix.HasIndex("bySpecies"))
	assert.Empty(t, ix.GetSliceRowIDs("bySpecies", "dog"))
	assert.Equal(t, []string{"ids:bySpecies", "rows:bySpecies/dog", "rows:bySpecies/cat"}, rec.events)

	assert.Error(t, ix.SetIndexDefinition("bad", "pets", 7, "", false))
	assert.Equal(t, map[string]int{"sliceIds": 1, "sliceRowIds": 1}, ix.GetListenerStats())

	ix.Destroy()
	assert.Zero(t, s.GetListenerStats()["didFinishTransaction"])
}
