package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

func sampleContent() ir.Content {
	return ir.Content{
		Tables: ir.Tables{
			"pets": ir.Table{
				"fido":  ir.Row{"species": ir.String("dog"), "price": ir.Number(4.5), "sold": ir.Bool(true)},
				"felix": ir.Row{"species": ir.String("cat"), "legs": ir.Number(4)},
			},
		},
		Values: ir.Values{"open": ir.Bool(false), "name": ir.String("Pet Shop")},
	}
}

func openBackends(t *testing.T) map[Kind]Backend {
	t.Helper()
	dir := t.TempDir()
	backends := map[Kind]Backend{}
	for _, kind := range []Kind{KindSQLite, KindBolt, KindFile} {
		b, err := Open(kind, filepath.Join(dir, "content."+string(kind)))
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		backends[kind] = b
	}
	return backends
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for kind, b := range openBackends(t) {
		t.Run(string(kind), func(t *testing.T) {
			assert.Equal(t, string(kind), b.Name())

			_, found, err := b.Read(ctx)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, b.Write(ctx, sampleContent()))
			got, found, err := b.Read(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, sampleContent(), got)

			empty := ir.Content{Tables: ir.Tables{}, Values: ir.Values{}}
			require.NoError(t, b.Write(ctx, empty))
			got, found, err = b.Read(ctx)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, empty, got)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("csv", filepath.Join(t.TempDir(), "x"))
	assert.ErrorContains(t, err, "unknown backend")
}

func TestFileBackendDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.json")
	b := NewFileBackend(path)

	tests := []struct {
		name string
		data string
	}{
		{"malformed", `[{"pets":`},
		{"not a pair", `{"pets":{}}`},
		{"nested cell", `[{"pets":{"fido":{"tags":["a"]}}},{}]`},
		{"null value", `[{},{"open":null}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))
			_, _, err := b.Read(context.Background())
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeDecodeFailed), "got %v", err)
		})
	}
}

func TestPersisterLoadAndSave(t *testing.T) {
	ctx := context.Background()
	for kind, b := range openBackends(t) {
		t.Run(string(kind), func(t *testing.T) {
			require.NoError(t, b.Write(ctx, sampleContent()))

			st := store.New()
			p := New(st, b)
			found, err := p.Load(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, ir.String("dog"), st.GetCell("pets", "fido", "species"))
			assert.Equal(t, ir.Bool(false), st.GetValue("open"))

			require.NoError(t, p.Save(ctx))
			assert.Equal(t, Stats{Loads: 1, SkippedSaves: 1}, p.Stats())

			st.SetCell("pets", "felix", "legs", 3)
			require.NoError(t, p.Save(ctx))
			assert.Equal(t, 1, p.Stats().Saves)

			got, _, err := b.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, ir.Number(3), got.Tables["pets"]["felix"]["legs"])
		})
	}
}

func TestPersisterLoadNothingSaved(t *testing.T) {
	st := store.New()
	st.SetValue("keep", true)
	p := New(st, NewFileBackend(filepath.Join(t.TempDir(), "missing.json")))

	found, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, ir.Bool(true), st.GetValue("keep"))
}

func TestPersisterAutoSave(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "auto.db"))
	require.NoError(t, err)

	st := store.New()
	p := New(st, b)
	defer p.Close()
	require.NoError(t, p.StartAutoSave(ctx))
	assert.True(t, p.IsAutoSaving())

	st.SetRow("pets", "fido", map[string]any{"species": "dog"})
	got, found, err := b.Read(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ir.String("dog"), got.Tables["pets"]["fido"]["species"])

	st.Transaction(func() {
		st.SetCell("pets", "fido", "species", "cat")
		st.SetCell("pets", "fido", "species", "dog")
	}, nil)
	assert.Equal(t, 2, p.Stats().Saves)

	p.StopAutoSave()
	assert.False(t, p.IsAutoSaving())
	st.SetValue("open", true)
	assert.Equal(t, 2, p.Stats().Saves)
}

func TestPersisterDebouncedAutoSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "debounced.bolt")
	b, err := OpenBolt(path)
	require.NoError(t, err)

	st := store.New()
	p := New(st, b, WithDebounce(time.Hour))
	defer p.Close()
	require.NoError(t, p.StartAutoSave(ctx))
	assert.Equal(t, 1, p.Stats().Saves)

	for i := range 3 {
		st.SetCell("counts", "row", "n", i)
	}
	assert.Equal(t, 1, p.Stats().Saves)

	p.StopAutoSave()
	assert.Equal(t, 2, p.Stats().Saves)
	got, _, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Number(2), got.Tables["counts"]["row"]["n"])
}

func TestPersisterAutoLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "shared.json")
	other := NewFileBackend(path)
	require.NoError(t, other.Write(ctx, sampleContent()))

	st := store.New()
	p := New(st, NewFileBackend(path))
	defer p.Close()
	require.NoError(t, p.StartAutoLoad(ctx))
	assert.True(t, p.IsAutoLoading())

	var species ir.Scalar
	p.Do(func(st *store.Store) { species = st.GetCell("pets", "fido", "species") })
	assert.Equal(t, ir.String("dog"), species)

	changed := sampleContent()
	changed.Tables["pets"]["fido"]["species"] = ir.String("wolf")
	require.NoError(t, other.Write(ctx, changed))

	require.Eventually(t, func() bool {
		var got ir.Scalar
		p.Do(func(st *store.Store) { got = st.GetCell("pets", "fido", "species") })
		return got == ir.String("wolf")
	}, 5*time.Second, 10*time.Millisecond)

	p.StopAutoLoad()
	assert.False(t, p.IsAutoLoading())
}

func TestPersisterAutoLoadNeedsWatcher(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	p := New(store.New(), b)
	defer p.Close()

	err = p.StartAutoLoad(context.Background())
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeLoadFailed))
}

func TestPersisterClosed(t *testing.T) {
	p := New(store.New(), NewFileBackend(filepath.Join(t.TempDir(), "c.json")))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Save(context.Background())
	assert.True(t, IsClosed(err))
	_, err = p.Load(context.Background())
	assert.True(t, IsClosed(err))
	assert.ErrorContains(t, err, "CLOSED")
}
