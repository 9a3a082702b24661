package htmltok

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/host"
)

func tokenize(t *testing.T, source string) *host.Document {
	t.Helper()
	doc, err := New().Tokenize("app.html", source)
	require.NoError(t, err)
	return doc
}

func TestTokenizeStructure(t *testing.T) {
	src := `<template><div class="card"><span>hi</span><!-- note --></div></template>`
	doc := tokenize(t, src)

	require.Len(t, doc.Roots, 1)
	tpl := doc.Roots[0]
	require.Equal(t, host.NodeElement, tpl.Kind)
	require.Equal(t, "template", tpl.Tag)

	require.Len(t, tpl.Children, 1)
	div := tpl.Children[0]
	require.Equal(t, "div", div.Tag)

	cls, ok := div.Attr("class")
	require.True(t, ok)
	require.Equal(t, "card", cls.Value)
	require.Equal(t, "card", cls.ValueSpan.Slice(src))

	require.Len(t, div.Children, 2)
	span := div.Children[0]
	require.Equal(t, "span", span.Tag)
	require.Equal(t, host.NodeText, span.Children[0].Kind)
	require.Equal(t, "hi", span.Children[0].Text)

	comment := div.Children[1]
	require.Equal(t, host.NodeComment, comment.Kind)
	require.Equal(t, " note ", comment.Text)
}

func TestAttrValueSpanExcludesQuotes(t *testing.T) {
	src := `<input value="count" disabled>`
	doc := tokenize(t, src)

	input := doc.Roots[0]
	val, ok := input.Attr("value")
	require.True(t, ok)
	require.Equal(t, "count", val.ValueSpan.Slice(src))
	require.Equal(t, byte('"'), src[val.ValueSpan.Start-1])
	require.Equal(t, byte('"'), src[val.ValueSpan.End])

	disabled, ok := input.Attr("disabled")
	require.True(t, ok)
	require.False(t, disabled.HasValue)
}

func TestAttrSpansSurviveCrlfNormalization(t *testing.T) {
	// Line endings are normalized before parsing; spans must still index
	// the original text, not the normalized copy.
	src := "<template><div\r\n  title=\"hello ${name}\"></div></template>"
	doc := tokenize(t, src)

	div := doc.Roots[0].Children[0]
	require.Equal(t, "div", div.Tag)

	title, ok := div.Attr("title")
	require.True(t, ok)
	require.Equal(t, "hello ${name}", title.ValueSpan.Slice(src))
	require.Equal(t, strings.Index(src, "hello"), title.ValueSpan.Start)
	require.Equal(t, "title", title.NameSpan.Slice(src))
}

func TestEmptyQuotedValue(t *testing.T) {
	src := `<div data-x=""></div>`
	doc := tokenize(t, src)

	attr, ok := doc.Roots[0].Attr("data-x")
	require.True(t, ok)
	require.True(t, attr.HasValue)
	require.Equal(t, 0, attr.ValueSpan.Len())
	require.Equal(t, "", attr.ValueSpan.Slice(src))
}

func TestWalkPaths(t *testing.T) {
	src := `<template><div></div><span></span></template>`
	doc := tokenize(t, src)

	var tags []string
	var paths [][]int
	doc.Walk(func(n *host.Node, path []int) bool {
		if n.Kind == host.NodeElement {
			tags = append(tags, n.Tag)
			paths = append(paths, append([]int(nil), path...))
		}
		return true
	})
	require.Equal(t, []string{"template", "div", "span"}, tags)
	require.Equal(t, [][]int{{0}, {0, 0}, {0, 1}}, paths)
}
