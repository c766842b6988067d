package metadata

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore()
	s.Set("doc1", map[string]Value{"category": String("news"), "score": Number(4.5)})

	rec, ok := s.Get("doc1")
	require.True(t, ok)
	catID, _ := s.Fields().Lookup("category")
	assert.Equal(t, "news", rec[catID].StringVal)

	s.Delete("doc1")
	_, ok = s.Get("doc1")
	assert.False(t, ok)
}

func TestFilter_EqLeaf(t *testing.T) {
	s := NewStore()
	s.Set("a", map[string]Value{"category": String("news")})
	s.Set("b", map[string]Value{"category": String("sports")})

	catID := s.Fields().Intern("category")
	ids, err := s.Filter(Leaf(catID, OpEq, String("news")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestFilter_RangeLeaf(t *testing.T) {
	s := NewStore()
	s.Set("a", map[string]Value{"score": Number(1.0)})
	s.Set("b", map[string]Value{"score": Number(5.0)})
	s.Set("c", map[string]Value{"score": Number(9.0)})

	scoreID := s.Fields().Intern("score")
	ids, err := s.Filter(LeafRange(scoreID, Number(2.0), Number(8.0)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestFilter_AndOrNot(t *testing.T) {
	s := NewStore()
	s.Set("a", map[string]Value{"category": String("news"), "active": Bool(true)})
	s.Set("b", map[string]Value{"category": String("news"), "active": Bool(false)})
	s.Set("c", map[string]Value{"category": String("sports"), "active": Bool(true)})

	catID := s.Fields().Intern("category")
	activeID := s.Fields().Intern("active")

	ids, err := s.Filter(And(Leaf(catID, OpEq, String("news")), Leaf(activeID, OpEq, Bool(true))))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	ids, err = s.Filter(Or(Leaf(catID, OpEq, String("sports")), Not(Leaf(activeID, OpEq, Bool(true)))))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestFilter_InLeaf(t *testing.T) {
	s := NewStore()
	s.Set("a", map[string]Value{"category": String("news")})
	s.Set("b", map[string]Value{"category": String("tech")})
	s.Set("c", map[string]Value{"category": String("sports")})

	catID := s.Fields().Intern("category")
	ids, err := s.Filter(LeafIn(catID, []Value{String("news"), String("tech")}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFilter_RejectsTooManyLeaves(t *testing.T) {
	s := NewStore()
	fieldID := s.Fields().Intern("x")
	var children []*Node
	for i := 0; i < MaxFilterLeaves+1; i++ {
		children = append(children, Leaf(fieldID, OpEq, Number(float64(i))))
	}
	_, err := s.Filter(And(children...))
	assert.Error(t, err)
}

func TestBuildPredicate_ScalarBecomesEq(t *testing.T) {
	fields := NewFieldBuilder()
	tree, err := BuildPredicate(fields, map[string]interface{}{"category": "news"})
	require.NoError(t, err)

	rec := Record{fields.Intern("category"): String("news")}
	assert.True(t, tree.Evaluate(rec))
}

func TestBuildPredicate_OperatorMap(t *testing.T) {
	fields := NewFieldBuilder()
	tree, err := BuildPredicate(fields, map[string]interface{}{
		"score": map[string]interface{}{"$gt": float64(3)},
	})
	require.NoError(t, err)

	rec := Record{fields.Intern("score"): Number(5)}
	assert.True(t, tree.Evaluate(rec))

	rec2 := Record{fields.Intern("score"): Number(1)}
	assert.False(t, tree.Evaluate(rec2))
}

func TestBuildPredicate_UnknownOperatorRejected(t *testing.T) {
	fields := NewFieldBuilder()
	_, err := BuildPredicate(fields, map[string]interface{}{
		"score": map[string]interface{}{"$bogus": float64(3)},
	})
	assert.Error(t, err)
}

func TestBuildPredicate_RejectsTooManyLeaves(t *testing.T) {
	fields := NewFieldBuilder()
	predicate := make(map[string]interface{}, MaxFilterLeaves+1)
	for i := 0; i < MaxFilterLeaves+1; i++ {
		predicate[fmt.Sprintf("field%d", i)] = i
	}
	_, err := BuildPredicate(fields, predicate)
	assert.Error(t, err)
}

func TestStore_SaveAndLoad_RoundTrips(t *testing.T) {
	s := NewStore()
	s.Set("a", map[string]Value{
		"category": String("news"),
		"score":    Number(4.5),
		"active":   Bool(true),
		"tags":     StringArray([]string{"x", "y"}),
	})

	path := filepath.Join(t.TempDir(), "index.meta.json")
	require.NoError(t, s.Save(path))

	loaded := NewStore()
	require.NoError(t, loaded.Load(path))

	rec, ok := loaded.Get("a")
	require.True(t, ok)
	catID := loaded.Fields().Intern("category")
	assert.Equal(t, "news", rec[catID].StringVal)
}

func TestStore_Load_MissingSidecarIsNonFatal(t *testing.T) {
	s := NewStore()
	err := s.Load(filepath.Join(t.TempDir(), "missing.meta.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestStore_Load_RejectsForbiddenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.meta.json")
	require.NoError(t, writeRaw(path, `{"a":{"__proto__":{"kind":"string","string":"x"}}}`))

	s := NewStore()
	err := s.Load(path)
	assert.Error(t, err)
}
