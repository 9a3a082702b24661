package exprtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/expr"
)

func TestDeduplication(t *testing.T) {
	tab := New("filehash1")

	a := tab.Parse(10, 14, expr.KindProperty, "name")
	b := tab.Parse(10, 14, expr.KindProperty, "name")
	require.Same(t, a, b)
	require.Equal(t, 1, tab.Len())

	// A different occurrence of the same code gets its own entry and id.
	c := tab.Parse(40, 44, expr.KindProperty, "name")
	require.NotEqual(t, a.Id, c.Id)
	require.Equal(t, 2, tab.Len())
}

func TestIdDependsOnFileContent(t *testing.T) {
	a := New("filehash1").Parse(10, 14, expr.KindProperty, "name")
	b := New("filehash2").Parse(10, 14, expr.KindProperty, "name")
	require.NotEqual(t, a.Id, b.Id)
}

func TestBadExpressionIsAValue(t *testing.T) {
	tab := New("filehash1")

	e := tab.Parse(0, 4, expr.KindProperty, "a ? b")
	require.True(t, e.IsBad())
	require.Nil(t, e.Ast)
	require.Equal(t, "a ? b", e.Bad.Code)
	require.NotEmpty(t, e.Bad.Message)

	// Bad entries deduplicate like good ones.
	require.Same(t, e, tab.Parse(0, 4, expr.KindProperty, "a ? b"))
}

func TestLookupAndOrder(t *testing.T) {
	tab := New("filehash1")
	first := tab.Parse(0, 1, expr.KindProperty, "x")
	second := tab.Parse(5, 6, expr.KindProperty, "y")

	got, ok := tab.Lookup(first.Id)
	require.True(t, ok)
	require.Same(t, first, got)

	require.Equal(t, []Entry{*first, *second}[0].Id, tab.Ids()[0])
	require.Len(t, tab.Ids(), 2)
}
