package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/catalog"
	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/host/htmltok"
	"weft/internal/host/tsfacts"
)

func TestFactsCacheReusesUnchangedFiles(t *testing.T) {
	cache := NewFactsCache(tsfacts.NewExtractor())
	sink := diag.NewCollector()

	files := map[span.FileId][]byte{
		"src/a.ts": []byte(`export class AlphaCustomElement {}`),
		"src/b.ts": []byte(`export class BetaCustomElement {}`),
	}
	_, stats := cache.Refresh(files, sink)
	require.Len(t, stats.Extracted, 2)
	require.Empty(t, stats.Reused)

	// Second refresh: A unchanged, B edited.
	files["src/b.ts"] = []byte(`export class BetaPrimeCustomElement {}`)
	facts, stats := cache.Refresh(files, sink)
	require.Equal(t, []span.FileId{"src/a.ts"}, stats.Reused)
	require.Equal(t, []span.FileId{"src/b.ts"}, stats.Extracted)

	_, ok := facts["src/b.ts"].Class("BetaPrimeCustomElement")
	require.True(t, ok, "merged facts must carry the new extraction, not the stale one")

	// Third refresh without B: entry evicted.
	delete(files, "src/b.ts")
	_, stats = cache.Refresh(files, sink)
	require.Equal(t, []span.FileId{"src/b.ts"}, stats.Evicted)
	require.Equal(t, 1, cache.Len())
}

func TestFactsCacheBrokenFileDegrades(t *testing.T) {
	cache := NewFactsCache(tsfacts.NewExtractor())
	sink := diag.NewCollector()

	files := map[span.FileId][]byte{
		"src/good.ts":   []byte(`export class GoodCustomElement {}`),
		"src/broken.ts": []byte("class {{{"),
	}
	facts, _ := cache.Refresh(files, sink)

	// Tree-sitter recovers, so even the broken file yields facts and the
	// good file is unaffected either way.
	require.NotNil(t, facts["src/broken.ts"])
	_, ok := facts["src/good.ts"].Class("GoodCustomElement")
	require.True(t, ok)
}

func factsOf(t *testing.T, sources map[span.FileId]string) map[span.FileId]*tsfacts.FileFacts {
	t.Helper()
	ex := tsfacts.NewExtractor()
	out := make(map[span.FileId]*tsfacts.FileFacts, len(sources))
	for file, src := range sources {
		facts, err := ex.Extract(file, []byte(src))
		require.NoError(t, err)
		out[file] = facts
	}
	return out
}

func TestResolveExportsChains(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/card.ts":  `export class UserCard {}`,
		"src/index.ts": `export { UserCard as Card } from './card';`,
		"src/all.ts":   `export * from './index';`,
	})
	exports := ResolveExports(facts)

	def, ok := exports.Lookup("src/index.ts", "Card")
	require.True(t, ok)
	require.Equal(t, Definition{File: "src/card.ts", Name: "UserCard"}, def)

	def, ok = exports.Lookup("src/all.ts", "Card")
	require.True(t, ok)
	require.Equal(t, "UserCard", def.Name)

	require.Empty(t, exports.UnresolvedImports())
}

func TestResolveExportsCyclicStarTerminates(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/a.ts": "export * from './b';\nexport class Alpha {}",
		"src/b.ts": "export * from './a';\nexport class Beta {}",
	})
	exports := ResolveExports(facts)

	def, ok := exports.Lookup("src/a.ts", "Beta")
	require.True(t, ok)
	require.Equal(t, span.FileId("src/b.ts"), def.File)
	def, ok = exports.Lookup("src/b.ts", "Alpha")
	require.True(t, ok)
	require.Equal(t, span.FileId("src/a.ts"), def.File)
}

func TestResolveExportsUnresolvedRelativeImport(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/a.ts": `export { Gone } from './missing';`,
	})
	exports := ResolveExports(facts)
	require.Len(t, exports.UnresolvedImports(), 1)
	_, ok := exports.Lookup("src/a.ts", "Gone")
	require.False(t, ok)
}

func TestEvaluatorDefinesSubstitution(t *testing.T) {
	ev := &Evaluator{Defines: map[string]interface{}{
		"SSR":              false,
		"process.env.MODE": "production",
	}}

	cond := &tsfacts.Value{
		Kind: tsfacts.ValConditional,
		Elems: []tsfacts.Value{
			{Kind: tsfacts.ValIdent, Name: "SSR"},
			{Kind: tsfacts.ValString, Str: "server"},
			{Kind: tsfacts.ValString, Str: "client"},
		},
	}
	r := ev.Eval(cond)
	require.True(t, r.Known)
	require.Equal(t, "client", r.Value)
	require.Empty(t, r.Gaps)

	member := &tsfacts.Value{Kind: tsfacts.ValMember, Name: "process.env.MODE"}
	r = ev.Eval(member)
	require.True(t, r.Known)
	require.Equal(t, "production", r.Value)
}

func TestEvaluatorGapClassification(t *testing.T) {
	ev := &Evaluator{}

	cases := []struct {
		value   *tsfacts.Value
		pattern PatternKind
	}{
		{&tsfacts.Value{Kind: tsfacts.ValCall, Name: "compute"}, PatternFunctionCall},
		{&tsfacts.Value{Kind: tsfacts.ValIdent, Name: "flag"}, PatternVariableRef},
		{&tsfacts.Value{Kind: tsfacts.ValMember, Name: "a.b"}, PatternPropertyAccess},
		{&tsfacts.Value{Kind: tsfacts.ValUnknown, Raw: "x + y"}, PatternOther},
	}
	for _, tc := range cases {
		r := ev.Eval(tc.value)
		require.False(t, r.Known)
		require.Len(t, r.Gaps, 1)
		require.Equal(t, tc.pattern, r.Gaps[0].Pattern)
	}

	// Undischarged conditional: one conditional gap for the whole value.
	cond := &tsfacts.Value{
		Kind: tsfacts.ValConditional,
		Elems: []tsfacts.Value{
			{Kind: tsfacts.ValIdent, Name: "unknownFlag"},
			{Kind: tsfacts.ValString, Str: "a"},
			{Kind: tsfacts.ValString, Str: "b"},
		},
	}
	r := ev.Eval(cond)
	require.False(t, r.Known)
	patterns := []PatternKind{}
	for _, g := range r.Gaps {
		patterns = append(patterns, g.Pattern)
	}
	require.Contains(t, patterns, PatternConditional)
}

func TestEvaluatorSpreadFolding(t *testing.T) {
	base := &tsfacts.Value{
		Kind: tsfacts.ValArray,
		Elems: []tsfacts.Value{
			{Kind: tsfacts.ValString, Str: "a"},
		},
	}
	ev := &Evaluator{Env: map[string]*tsfacts.Value{"base": base}}

	spreadKnown := &tsfacts.Value{
		Kind: tsfacts.ValArray,
		Elems: []tsfacts.Value{
			{Kind: tsfacts.ValSpread, Elems: []tsfacts.Value{{Kind: tsfacts.ValIdent, Name: "base"}}},
			{Kind: tsfacts.ValString, Str: "b"},
		},
	}
	r := ev.Eval(spreadKnown)
	require.True(t, r.Known)
	require.Equal(t, []interface{}{"a", "b"}, r.Value)

	spreadUnknown := &tsfacts.Value{
		Kind: tsfacts.ValArray,
		Elems: []tsfacts.Value{
			{Kind: tsfacts.ValSpread, Elems: []tsfacts.Value{{Kind: tsfacts.ValIdent, Name: "plugins"}}},
		},
	}
	r = ev.Eval(spreadUnknown)
	require.False(t, r.Known)
	found := false
	for _, g := range r.Gaps {
		if g.Pattern == PatternSpreadVariable {
			found = true
		}
	}
	require.True(t, found)
}

func TestRecognizeDecoratorForm(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/card.ts": `import { customElement, bindable } from 'aurelia';

@customElement({ name: 'user-card', aliases: ['uc'], containerless: true })
export class UserCard {
  @bindable({ mode: 'twoWay', primary: true }) user = null;
}`,
	})
	ev := &Evaluator{}
	cands := Recognize("src/card.ts", facts["src/card.ts"], ev)
	require.Len(t, cands, 1)

	c := cands[0]
	require.Equal(t, FormDecorator, c.Form)
	require.Equal(t, catalog.RankExplicit, c.Rank)
	require.Equal(t, "user-card", c.Name)

	aliases, stubbed := c.Def.Aliases.OrStub(nil)
	require.False(t, stubbed)
	require.Equal(t, []string{"uc"}, aliases)

	containerless, stubbed := c.Def.Containerless.OrStub(false)
	require.False(t, stubbed)
	require.True(t, containerless)

	b, ok := c.Def.Bindables["user"]
	require.True(t, ok)
	mode, _ := b.Mode.OrStub("")
	require.Equal(t, catalog.ModeTwoWay, mode)
	primary, _ := b.Primary.OrStub(false)
	require.True(t, primary)
}

func TestRecognizeStaticAuForm(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/tooltip.ts": `export class Tooltip {
  static $au = { type: 'custom-attribute', name: 'tooltip', bindables: ['text', 'placement'] };
}`,
	})
	cands := Recognize("src/tooltip.ts", facts["src/tooltip.ts"], &Evaluator{})
	require.Len(t, cands, 1)
	require.Equal(t, FormStaticAu, cands[0].Form)
	require.Equal(t, catalog.KindCustomAttribute, cands[0].Kind)
	require.Equal(t, "tooltip", cands[0].Name)
	require.Contains(t, cands[0].Def.Bindables, "text")
	require.Contains(t, cands[0].Def.Bindables, "placement")
}

func TestRecognizeConventionAndDefineForms(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/res.ts": `export class DateFormatValueConverter {}
CustomElement.define({ name: 'x-inline' }, Inline);`,
	})
	cands := Recognize("src/res.ts", facts["src/res.ts"], &Evaluator{})
	require.Len(t, cands, 2)

	byForm := map[DeclarationForm]Candidate{}
	for _, c := range cands {
		byForm[c.Form] = c
	}

	conv := byForm[FormConvention]
	require.Equal(t, catalog.KindValueConverter, conv.Kind)
	require.Equal(t, "date-format", conv.Name)
	require.Equal(t, catalog.RankConvention, conv.Rank)

	def := byForm[FormDefineCall]
	require.Equal(t, catalog.KindCustomElement, def.Kind)
	require.Equal(t, "x-inline", def.Name)
	declName, _ := def.Def.DeclName.OrStub("")
	require.Equal(t, "Inline", declName)
}

func TestAssembleRankConvergence(t *testing.T) {
	// The template claims a mode for "user"; the decorator knows better.
	explicit := Candidate{
		Form: FormDecorator, Rank: catalog.RankExplicit,
		Kind: catalog.KindCustomElement, Name: "user-card",
		Def: &catalog.ResourceDef{
			Kind: catalog.KindCustomElement,
			Name: catalog.Known("user-card", catalog.OriginSource),
			Bindables: map[string]catalog.Bindable{
				"user": {Property: "user", Mode: catalog.Known(catalog.ModeTwoWay, catalog.OriginSource)},
			},
		},
	}
	meta := Candidate{
		Form: FormTemplateMeta, Rank: catalog.RankTemplateMeta,
		Kind: catalog.KindCustomElement, Name: "user-card",
		Def: &catalog.ResourceDef{
			Kind:          catalog.KindCustomElement,
			Name:          catalog.Known("user-card", catalog.OriginSource),
			Containerless: catalog.Known(true, catalog.OriginSource),
			Bindables: map[string]catalog.Bindable{
				"user": {Property: "user", Mode: catalog.Known(catalog.ModeToView, catalog.OriginSource)},
			},
		},
	}

	resources, gaps := Assemble([]Candidate{meta, explicit})
	require.Empty(t, gaps)
	require.Len(t, resources, 1)

	r := resources[0]
	mode, _ := r.Bindables["user"].Mode.OrStub("")
	require.Equal(t, catalog.ModeTwoWay, mode, "explicit evidence must win")

	// The hole the decorator left gets filled from template meta.
	containerless, stubbed := r.Containerless.OrStub(false)
	require.False(t, stubbed)
	require.True(t, containerless)

	var contested []string
	for _, note := range r.Convergence {
		contested = append(contested, note.Field)
	}
	require.Contains(t, contested, "bindable:user")
}

func TestRegisterConservativeGuards(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/main.ts": `import { UserCard } from './card';
Aurelia.register(UserCard, SSR ? ServerPlugin : ClientPlugin, RouterPlugin.customize(), ...extras);`,
	})
	ff := facts["src/main.ts"]
	ev := &Evaluator{}

	regs := ResolveRegistrations("src/main.ts", ff, ev)

	byTarget := map[string]Registration{}
	for _, r := range regs {
		byTarget[r.Target] = r
		require.True(t, r.Active, "unresolved guards must stay active")
	}

	require.False(t, byTarget["UserCard"].Conservative)

	require.True(t, byTarget["ServerPlugin"].Conservative)
	require.True(t, byTarget["ClientPlugin"].Conservative)
	// Neither plugin is imported, so each branch carries its own unknown-
	// identifier gap; the guard gap still wins the classification.
	require.Equal(t, PatternConditional, byTarget["ServerPlugin"].Gap.Pattern)
	require.Equal(t, PatternConditional, byTarget["ClientPlugin"].Gap.Pattern)

	require.True(t, byTarget["RouterPlugin.customize"].Conservative)
	require.Equal(t, PatternFunctionCall, byTarget["RouterPlugin.customize"].Gap.Pattern)

	require.True(t, byTarget["...extras"].Conservative)
	require.Equal(t, PatternSpreadVariable, byTarget["...extras"].Gap.Pattern)
}

func TestRegisterGuardDischargedByDefines(t *testing.T) {
	facts := factsOf(t, map[span.FileId]string{
		"src/main.ts": `Aurelia.register(SSR ? ServerPlugin : ClientPlugin);`,
	})
	ev := &Evaluator{Defines: map[string]interface{}{"SSR": true}}
	regs := ResolveRegistrations("src/main.ts", facts["src/main.ts"], ev)
	require.Len(t, regs, 1)
	require.Equal(t, "ServerPlugin", regs[0].Target)
}

func TestDiscoveryEndToEnd(t *testing.T) {
	d := New(Options{Tokenizer: htmltok.New()})
	sink := diag.NewCollector()

	in := Input{
		Sources: map[span.FileId][]byte{
			"src/user-card.ts": []byte(`import { customElement, bindable } from 'aurelia';

@customElement('user-card')
export class UserCard {
  @bindable user = null;
}`),
			"src/main.ts": []byte(`import { UserCard } from './user-card';
Aurelia.register(UserCard).app(App).start();`),
		},
		Templates: map[span.FileId]string{
			"src/user-card.html": `<template><bindable name="label" mode="to-view"></bindable><slot></slot></template>`,
		},
	}

	result := d.Run(in, sink)
	require.NotNil(t, result.Catalog)

	card, ok := result.Catalog.Element("user-card")
	require.True(t, ok)
	require.Contains(t, card.Bindables, "user", "decorator evidence")
	require.Contains(t, card.Bindables, "label", "template-meta evidence fills holes")
	hasSlots, stubbed := card.HasSlots.OrStub(false)
	require.False(t, stubbed)
	require.True(t, hasSlots)

	require.True(t, result.Scope.Lookup("src/main.ts", "user-card"))

	require.Equal(t, catalog.ConfidenceHigh, result.Catalog.Confidence())
	require.NotEmpty(t, result.Snapshot.Hash)

	// An identical second run reuses every extraction and lands on the
	// same snapshot hash.
	again := d.Run(in, sink)
	require.Len(t, again.Stats.Reused, 2)
	require.Empty(t, again.Stats.Extracted)
	require.Equal(t, result.Snapshot.Hash, again.Snapshot.Hash)
}

func TestDiscoveryConfidenceDemotions(t *testing.T) {
	d := New(Options{})
	result := d.Run(Input{
		Sources: map[span.FileId][]byte{
			"src/a.ts": []byte(`export { Gone } from './missing';`),
		},
	}, nil)
	require.Equal(t, catalog.ConfidenceConservative, result.Catalog.Confidence())

	d = New(Options{})
	result = d.Run(Input{
		Sources: map[span.FileId][]byte{
			"src/b.ts": []byte(`import { customElement } from 'aurelia';

@customElement(pickName())
export class Widget {}`),
		},
	}, nil)
	require.Equal(t, catalog.ConfidencePartial, result.Catalog.Confidence())
	require.NotEmpty(t, result.Gaps)
}
