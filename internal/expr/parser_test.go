package expr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, code string, kind Kind) Node {
	t.Helper()
	n, err := Parse(code, kind)
	require.NoError(t, err)
	return n
}

func TestParseMemberChainSpans(t *testing.T) {
	n := mustParse(t, "foo.bar.baz", KindProperty)

	outer, ok := n.(*AccessMember)
	require.True(t, ok)
	require.Equal(t, "baz", outer.Name)
	require.Equal(t, Range{0, 11}, outer.Loc)
	require.Equal(t, Range{7, 11}, outer.LinkLoc)

	inner, ok := outer.Base.(*AccessMember)
	require.True(t, ok)
	require.Equal(t, "bar", inner.Name)
	require.Equal(t, Range{0, 7}, inner.Loc)
	require.Equal(t, Range{3, 7}, inner.LinkLoc)

	scope, ok := inner.Base.(*AccessScope)
	require.True(t, ok)
	require.Equal(t, "foo", scope.Name)
	require.Equal(t, Range{0, 3}, scope.Loc)

	// Link spans tile the chain without gaps.
	require.Equal(t, scope.Loc.End, inner.LinkLoc.Start)
	require.Equal(t, inner.LinkLoc.End, outer.LinkLoc.Start)
}

func TestParseOptionalChainAndKeyed(t *testing.T) {
	n := mustParse(t, "foo?.bar[qux]", KindProperty)

	keyed, ok := n.(*AccessKeyed)
	require.True(t, ok)
	require.Equal(t, Range{8, 13}, keyed.LinkLoc)

	key, ok := keyed.Key.(*AccessScope)
	require.True(t, ok)
	require.Equal(t, "qux", key.Name)

	member, ok := keyed.Base.(*AccessMember)
	require.True(t, ok)
	require.True(t, member.Optional)
	require.Equal(t, Range{3, 8}, member.LinkLoc)
}

func TestParseCall(t *testing.T) {
	n := mustParse(t, "save(item, 2)", KindListener)

	call, ok := n.(*Call)
	require.True(t, ok)
	require.Nil(t, call.Base)
	require.Equal(t, "save", call.Name)
	require.Len(t, call.Args, 2)
	require.Equal(t, Range{0, 13}, call.Loc)

	m := mustParse(t, "vm.save()", KindListener)
	mc, ok := m.(*Call)
	require.True(t, ok)
	require.NotNil(t, mc.Base)
	require.Equal(t, "save", mc.Name)
}

func TestParseForOf(t *testing.T) {
	n := mustParse(t, "item of items", KindIterator)

	f, ok := n.(*ForOf)
	require.True(t, ok)
	require.Equal(t, "item", f.DeclName)
	require.Equal(t, Range{0, 4}, f.DeclLoc)

	iter, ok := f.Iterable.(*AccessScope)
	require.True(t, ok)
	require.Equal(t, "items", iter.Name)
}

func TestParseBinaryAndConditional(t *testing.T) {
	n := mustParse(t, "a && b ? c + 1 : d.e", KindProperty)

	cond, ok := n.(*Conditional)
	require.True(t, ok)

	and, ok := cond.Cond.(*Binary)
	require.True(t, ok)
	require.Equal(t, "&&", and.Op)

	plus, ok := cond.Yes.(*Binary)
	require.True(t, ok)
	require.Equal(t, "+", plus.Op)

	_, ok = cond.No.(*AccessMember)
	require.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"foo.",
		"a ? b",
		"items[",
		"'unterminated",
		"a ++ b",
		"",
	}
	for _, code := range cases {
		_, err := Parse(code, KindProperty)
		require.Error(t, err, "expected parse failure for %q", code)
	}
}

func TestRoots(t *testing.T) {
	n := mustParse(t, "a.b + c(d) + a.e", KindProperty)
	require.Equal(t, []string{"a", "c", "d"}, Roots(n))
}

func TestSplitInterpolation(t *testing.T) {
	parts, exprs := SplitInterpolation("hello ${name}!")
	require.Equal(t, []string{"hello ", "!"}, parts)
	require.Len(t, exprs, 1)
	require.Equal(t, Range{8, 12}, exprs[0].Code)
	require.Equal(t, Range{6, 13}, exprs[0].Full)

	parts, exprs = SplitInterpolation("${x}")
	require.Equal(t, []string{"", ""}, parts)
	require.Len(t, exprs, 1)

	parts, exprs = SplitInterpolation("${a}${b}")
	require.Equal(t, []string{"", "", ""}, parts)
	require.Len(t, exprs, 2)

	// Nested braces and quoted braces stay inside one expression.
	_, exprs = SplitInterpolation("${fn({k: '}'})} tail")
	require.Len(t, exprs, 1)

	parts, exprs = SplitInterpolation("no expressions here")
	require.Equal(t, []string{"no expressions here"}, parts)
	require.Empty(t, exprs)

	// Unterminated interpolation degrades to literal text.
	parts, exprs = SplitInterpolation("broken ${oops")
	require.Empty(t, exprs)
	require.Equal(t, []string{"broken ${oops"}, parts)
}
