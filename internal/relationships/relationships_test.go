package relationships

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

func petStore() *store.Store {
	s := store.New()
	s.SetTables(map[string]any{
		"pets": map[string]any{
			"fido":  map[string]any{"species": "dog"},
			"felix": map[string]any{"species": "cat"},
			"cujo":  map[string]any{"species": "dog"},
		},
		"species": map[string]any{
			"dog": map[string]any{"price": 5},
			"cat": map[string]any{"price": 4},
		},
	})
	return s
}

type recorder struct {
	events []string
}

func (r *recorder) remote(_ *Relationships, relationshipID, localRowID string) {
	r.events = append(r.events, "remote:"+relationshipID+"/"+localRowID)
}

func (r *recorder) locals(_ *Relationships, relationshipID, remoteRowID string) {
	r.events = append(r.events, "locals:"+relationshipID+"/"+remoteRowID)
}

func (r *recorder) linked(_ *Relationships, relationshipID, firstRowID string) {
	r.events = append(r.events, "linked:"+relationshipID+"/"+firstRowID)
}

func TestRelationshipByCell(t *testing.T) {
	s := petStore()
	r := New(s)
	require.NoError(t, r.SetRelationshipDefinition("petSpecies", "pets", "species", "species"))

	remote, ok := r.GetRemoteRowID("petSpecies", "fido")
	require.True(t, ok)
	assert.Equal(t, "dog", remote)
	assert.Equal(t, []string{"cujo", "fido"}, r.GetLocalRowIDs("petSpecies", "dog"))
	assert.Equal(t, []string{"felix"}, r.GetLocalRowIDs("petSpecies", "cat"))
	assert.Empty(t, r.GetLocalRowIDs("petSpecies", "bird"))

	localTableID, _ := r.GetLocalTableID("petSpecies")
	remoteTableID, _ := r.GetRemoteTableID("petSpecies")
	assert.Equal(t, "pets", localTableID)
	assert.Equal(t, "species", remoteTableID)
	assert.Equal(t, []string{"petSpecies"}, r.GetRelationshipIDs())
}

func TestRelationshipFollowsRowChanges(t *testing.T) {
	s := petStore()
	r := New(s)
	require.NoError(t, r.SetRelationshipDefinition("petSpecies", "pets", "species", "species"))
	rec := &recorder{}
	r.AddRemoteRowIDListener("petSpecies", nil, rec.remote)
	r.AddLocalRowIDsListener(nil, nil, rec.locals)

	s.SetCell("pets", "felix", "species", "dog")
	assert.Equal(t, []string{"cujo", "fido", "felix"}, r.GetLocalRowIDs("petSpecies", "dog"))
	assert.Equal(t, []string{
		"remote:petSpecies/felix",
		"locals:petSpecies/cat",
		"locals:petSpecies/dog",
	}, rec.events)

	rec.events = nil
	s.SetCell("pets", "felix", "name", "Felix")
	assert.Empty(t, rec.events)

	s.DelRow("pets", "fido")
	_, ok := r.GetRemoteRowID("petSpecies", "fido")
	assert.False(t, ok)
	assert.Equal(t, []string{"remote:petSpecies/fido", "locals:petSpecies/dog"}, rec.events)
}

func TestRelationshipNetZeroTransaction(t *testing.T) {
	s := petStore()
	r := New(s)
	require.NoError(t, r.SetRelationshipDefinition("petSpecies", "pets", "species", "species"))
	rec := &recorder{}
	r.AddRemoteRowIDListener(nil, nil, rec.remote)
	r.AddLocalRowIDsListener(nil, nil, rec.locals)

	s.Transaction(func() {
		s.SetCell("pets", "fido", "species", "cat")
		s.SetCell("pets", "fido", "species", "dog")
	}, nil)
	assert.Empty(t, rec.events)
}

func TestRelationshipRemoteRowFunc(t *testing.T) {
	s := petStore()
	r := New(s)
	byInitial := RemoteRowFunc(func(getCell func(string) ir.Scalar, _ string) string {
		species, _ := getCell("species").(ir.String)
		if species == "" {
			return ""
		}
		return string(species[:1])
	})
	require.NoError(t, r.SetRelationshipDefinition("initial", "pets", "letters", byInitial))

	assert.Equal(t, []string{"cujo", "fido"}, r.GetLocalRowIDs("initial", "d"))
	remote, _ := r.GetRemoteRowID("initial", "felix")
	assert.Equal(t, "c", remote)

	s.SetRow("pets", "rex", map[string]any{"name": "Rex"})
	_, ok := r.GetRemoteRowID("initial", "rex")
	assert.False(t, ok)

	assert.Error(t, r.SetRelationshipDefinition("bad", "pets", "letters", 42))
}

func TestLinkedRowIDs(t *testing.T) {
	s := store.New()
	s.SetTable("chain", map[string]any{
		"a": map[string]any{"next": "b"},
		"b": map[string]any{"next": "c"},
		"c": map[string]any{"next": "d"},
	})
	r := New(s)
	require.NoError(t, r.SetRelationshipDefinition("next", "chain", "chain", "next"))

	assert.Equal(t, []string{"a", "b", "c", "d"}, r.GetLinkedRowIDs("next", "a"))
	assert.Equal(t, []string{"x"}, r.GetLinkedRowIDs("next", "x"))
	assert.Equal(t, []string{"a"}, r.GetLinkedRowIDs("missing", "a"))

	rec := &recorder{}
	r.AddLinkedRowIDsListener("next", "a", rec.linked)
	r.AddLinkedRowIDsListener("next", "c", rec.linked)

	s.SetCell("chain", "c", "next", "a")
	assert.Equal(t, []string{"a", "b", "c"}, r.GetLinkedRowIDs("next", "a"))
	assert.Equal(t, []string{"c", "a", "b"}, r.GetLinkedRowIDs("next", "c"))
	assert.Equal(t, []string{"linked:next/a", "linked:next/c"}, rec.events)

	rec.events = nil
	s.SetRow("chain", "z", map[string]any{"next": "y"})
	assert.Empty(t, rec.events)
}

func TestRelationshipDefinitionLifecycle(t *testing.T) {
	s := petStore()
	r := New(s)
	rec := &recorder{}
	r.AddRemoteRowIDListener("petSpecies", "felix", rec.remote)
	r.AddLocalRowIDsListener("petSpecies", "cat", rec.locals)

	require.NoError(t, r.SetRelationshipDefinition("petSpecies", "pets", "species", "species"))
	assert.Equal(t, []string{"remote:petSpecies/felix", "locals:petSpecies/cat"}, rec.events)
	assert.True(t, r.HasRelationship("petSpecies"))

	rec.events = nil
	r.DelRelationshipDefinition("petSpecies")
	assert.Equal(t, []string{"remote:petSpecies/felix", "locals:petSpecies/cat"}, rec.events)
	assert.False(t, r.HasRelationship("petSpecies"))
	assert.Empty(t, r.GetLocalRowIDs("petSpecies", "cat"))

	rec.events = nil
	s.SetCell("pets", "felix", "species", "dog")
	assert.Empty(t, rec.events)

	assert.Equal(t, map[string]int{"remoteRowId": 1, "localRowIds": 1, "linkedRowIds": 0}, r.GetListenerStats())
	r.Destroy()
	assert.Equal(t, map[string]int{"remoteRowId": 0, "localRowIds": 0, "linkedRowIds": 0}, r.GetListenerStats())
}
