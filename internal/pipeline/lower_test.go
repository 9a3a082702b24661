package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/core/config"
	"weft/internal/core/diag"
	"weft/internal/host"
	"weft/internal/host/htmltok"
)

func lowerSource(t *testing.T, source string, sink diag.Sink) *TemplateIR {
	t.Helper()
	doc, err := htmltok.New().Tokenize("app/widget.html", source)
	require.NoError(t, err)
	return NewLowerer(config.Default().Link.Commands, sink).Lower(doc)
}

func findInstruction(t *testing.T, ir *TemplateIR, kind InstructionKind) Instruction {
	t.Helper()
	for _, inst := range ir.Instructions() {
		if inst.Kind == kind {
			return inst
		}
	}
	t.Fatalf("no %s instruction in %v", kind, ir.Instructions())
	return Instruction{}
}

func TestLowerTextInterpolationParts(t *testing.T) {
	ir := lowerSource(t, `<template><div>${x}</div></template>`, nil)

	inst := findInstruction(t, ir, InstTextBinding)
	require.NotNil(t, inst.Interp)
	require.Equal(t, []string{"", ""}, inst.Interp.Parts)
	require.Len(t, inst.Interp.ExprIds, 1)
	require.Len(t, inst.Interp.Parts, len(inst.Interp.ExprIds)+1)

	entry, ok := ir.Exprs.Lookup(inst.Interp.ExprIds[0])
	require.True(t, ok)
	require.Equal(t, "x", entry.Code)
	require.Equal(t, "x", inst.Interp.Spans[0].Slice(ir.Source))
}

func TestLowerSpansSurviveCrlfNormalization(t *testing.T) {
	for _, crlfs := range []int{0, 1, 3} {
		prefix := strings.Repeat("<br>\r\n", crlfs)
		src := "<template>" + prefix + `<div title="${name}"></div></template>`

		ir := lowerSource(t, src, nil)
		inst := findInstruction(t, ir, InstAttributeBinding)
		require.Len(t, inst.Interp.ExprIds, 1, "crlfs=%d", crlfs)

		got := inst.Interp.Spans[0].Slice(src)
		require.Equal(t, "name", got, "crlfs=%d", crlfs)
		require.Equal(t, strings.Index(src, "name"), inst.Interp.Spans[0].Start, "crlfs=%d", crlfs)
	}
}

func TestLowerBindingCommands(t *testing.T) {
	ir := lowerSource(t, `<template>`+
		`<input value.bind="query">`+
		`<button click.trigger="save()"></button>`+
		`<div view.ref="panel"></div>`+
		`<div style.bind="bg"></div>`+
		`<div data.xyz="static"></div>`+
		`</template>`, nil)

	prop := findInstruction(t, ir, InstPropertyBinding)
	require.Equal(t, "value", prop.Target)
	require.Equal(t, "bind", prop.Command)
	require.Equal(t, "query", prop.Span.Slice(ir.Source))

	listener := findInstruction(t, ir, InstListenerBinding)
	require.Equal(t, "click", listener.Target)

	ref := findInstruction(t, ir, InstRefBinding)
	require.Equal(t, "view", ref.Target)

	style := findInstruction(t, ir, InstStyleBinding)
	require.Equal(t, "style", style.Target)

	// An unrecognized suffix is part of the attribute name, not a command.
	static := findInstruction(t, ir, InstSetAttribute)
	require.Equal(t, "data.xyz", static.Target)
	require.Equal(t, "static", static.Value)
}

func TestLowerIteratorWithTailOptions(t *testing.T) {
	src := `<template><div repeat.for="item of items; key: id"></div></template>`
	ir := lowerSource(t, src, nil)

	inst := findInstruction(t, ir, InstIteratorBinding)
	require.Equal(t, "repeat", inst.Target)
	require.Equal(t, "for", inst.Command)

	entry, ok := ir.Exprs.Lookup(inst.ExprId)
	require.True(t, ok)
	require.Equal(t, "item of items", entry.Code)

	require.Len(t, inst.TailOptions, 1)
	tail := inst.TailOptions[0]
	require.Equal(t, "key", tail.Name)
	require.Equal(t, "id", tail.Span.Slice(src))
}

func TestLowerLetElement(t *testing.T) {
	ir := lowerSource(t, `<template><let total.bind="a + b"></let></template>`, nil)

	inst := findInstruction(t, ir, InstHydrateLet)
	require.Equal(t, "total", inst.Target)
	entry, ok := ir.Exprs.Lookup(inst.ExprId)
	require.True(t, ok)
	require.Equal(t, "a + b", entry.Code)
}

func TestLowerMetaElements(t *testing.T) {
	ir := lowerSource(t, `<template>`+
		`<bindable name="user" mode="twoWay" attribute="user-data"></bindable>`+
		`<containerless></containerless>`+
		`<use-shadow-dom mode="closed"></use-shadow-dom>`+
		`<alias name="u-card"></alias>`+
		`<div></div>`+
		`</template>`, nil)

	require.True(t, ir.Meta.Containerless)
	require.Equal(t, "closed", ir.Meta.ShadowMode)
	require.Equal(t, []string{"u-card"}, ir.Meta.Aliases)

	b, ok := ir.Meta.Bindables["user"]
	require.True(t, ok)
	mode, stubbed := b.Mode.OrStub("")
	require.False(t, stubbed)
	require.Equal(t, "twoWay", mode)

	// Meta elements never survive into the IR tree.
	var tags []string
	ir.Walk(func(n *IRNode) {
		if n.Kind == IRElement {
			tags = append(tags, n.Tag)
		}
	})
	require.Equal(t, []string{"div"}, tags)
}

func TestLowerBadExpressionDegrades(t *testing.T) {
	sink := diag.NewCollector()
	ir := lowerSource(t, `<template><div title.bind="a +* b"></div></template>`, sink)

	inst := findInstruction(t, ir, InstPropertyBinding)
	entry, ok := ir.Exprs.Lookup(inst.ExprId)
	require.True(t, ok)
	require.True(t, entry.IsBad())

	var stages []diag.Stage
	for _, d := range sink.All() {
		stages = append(stages, d.Stage)
	}
	require.Contains(t, stages, diag.StageLower)
}

func TestLowerDedupesIdenticalOccurrences(t *testing.T) {
	ir := lowerSource(t, `<template><div>${n}</div><div>${n}</div></template>`, nil)

	// Different byte ranges keep distinct ids even for identical code.
	require.Equal(t, 2, ir.Exprs.Len())
}

var _ host.Tokenizer = (*htmltok.Tokenizer)(nil)
