package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ls []*Listener) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}

func TestRegistry_AddAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "0", r.Add(Cell, PathOf("t", "r", "c"), nil, false, nil))
	assert.Equal(t, "1", r.Add(Cell, PathOf("t", "r", "c"), nil, false, nil))
	assert.Equal(t, int64(2), r.Clock().Current())
}

func TestRegistry_MatchWildcards(t *testing.T) {
	r := NewRegistry()
	exact := r.Add(Cell, PathOf("t1", "r1", "c1"), nil, false, nil)
	anyCell := r.Add(Cell, PathOf("t1", "r1", nil), nil, false, nil)
	anyRow := r.Add(Cell, PathOf("t1", nil, "c1"), nil, false, nil)
	all := r.Add(Cell, PathOf(nil, nil, nil), nil, false, nil)
	other := r.Add(Cell, PathOf("t2", nil, nil), nil, false, nil)

	assert.Equal(t, []string{exact, anyCell, anyRow, all}, ids(r.Match(Cell, "t1", "r1", "c1")))
	assert.Equal(t, []string{anyCell, all}, ids(r.Match(Cell, "t1", "r1", "c2")))
	assert.Equal(t, []string{all, other}, ids(r.Match(Cell, "t2", "r9", "c9")))
	assert.Empty(t, r.Match(Row, "t1", "r1"))
}

func TestRegistry_MatchPathWildcardQuery(t *testing.T) {
	r := NewRegistry()
	byCell := r.Add(SortedRowIDs, PathOf("t", "c1"), nil, false, nil)
	byRowID := r.Add(SortedRowIDs, PathOf("t", nil), nil, false, nil)
	otherTable := r.Add(SortedRowIDs, PathOf("u", "c1"), nil, false, nil)
	other := r.Add(SortedRowIDs, PathOf("t", "c2"), nil, false, nil)

	assert.Equal(t, []string{byCell, byRowID, other}, ids(r.MatchPath(SortedRowIDs, Path{Exact("t"), Any})))
	assert.Equal(t, []string{byCell, byRowID}, ids(r.MatchPath(SortedRowIDs, PathOf("t", "c1"))))
	assert.Equal(t, []string{otherTable}, ids(r.MatchPath(SortedRowIDs, Path{Exact("u"), Any})))
}

func TestRegistry_MatchZeroDepth(t *testing.T) {
	r := NewRegistry()
	a := r.Add(HasTables, nil, nil, false, nil)
	b := r.Add(HasTables, Path{}, nil, true, nil)
	assert.Equal(t, []string{a, b}, ids(r.Match(HasTables)))
}

func TestRegistry_DelPrunes(t *testing.T) {
	r := NewRegistry()
	a := r.Add(Row, PathOf("t", nil), nil, false, nil)
	b := r.Add(Row, PathOf("t", "r"), nil, false, nil)

	l, ok := r.Del(a)
	require.True(t, ok)
	assert.Equal(t, a, l.ID)
	assert.False(t, r.Alive(l))
	assert.Equal(t, []string{b}, ids(r.Match(Row, "t", "r")))

	_, ok = r.Del(a)
	assert.False(t, ok)

	r.Del(b)
	assert.Empty(t, r.roots)
	assert.Equal(t, 0, r.Count(Row))
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	r.Add(Cell, PathOf(nil, nil, nil), nil, false, nil)
	r.Add(Cell, PathOf("t", nil, nil), nil, true, nil)
	r.Add(Value, PathOf("v"), nil, false, nil)

	assert.Equal(t, map[Category]int{Cell: 2, Value: 1}, r.Stats())
	assert.Equal(t, 3, r.Len())
	assert.Len(t, r.All(Cell), 2)
}

func TestRegistry_ClearKeepsClock(t *testing.T) {
	r := NewRegistry()
	r.Add(Cell, PathOf(nil, nil, nil), nil, false, nil)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "1", r.Add(Cell, PathOf(nil, nil, nil), nil, false, nil))
}

func TestPath(t *testing.T) {
	p := PathOf(1, nil, "c")
	assert.Equal(t, "/1/*/c", p.String())
	assert.True(t, p.Matches("1", "x", "c"))
	assert.False(t, p.Matches("1", "x"))
	assert.False(t, p.IsConcrete())
	assert.True(t, PathOf("a").IsConcrete())
}

func TestCategory(t *testing.T) {
	assert.Len(t, StoreCategories(), 25)
	for _, c := range StoreCategories() {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	assert.Equal(t, 3, Cell.Depth())
	assert.Equal(t, 2, HasTableCell.Depth())
	assert.Equal(t, 0, DidFinishTransaction.Depth())
	assert.Equal(t, -1, FirstCustom.Depth())

	_, err := ParseCategory("nope")
	assert.Error(t, err)
}
