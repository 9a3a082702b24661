package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcedOrStub(t *testing.T) {
	known := Known("user-card", OriginSource)
	v, stubbed := known.OrStub("fallback")
	require.Equal(t, "user-card", v)
	require.False(t, stubbed)

	unknown := Unknown[string]()
	v, stubbed = unknown.OrStub("fallback")
	require.Equal(t, "fallback", v)
	require.True(t, stubbed)
}

func TestConfidenceDemoteIsMinJoin(t *testing.T) {
	c := ConfidenceHigh
	c = c.Demote(ConfidencePartial)
	require.Equal(t, ConfidencePartial, c)

	// Demoting upward is a no-op: confidence only falls.
	c = c.Demote(ConfidenceHigh)
	require.Equal(t, ConfidencePartial, c)

	c = c.Demote(ConfidenceConservative)
	require.Equal(t, ConfidenceConservative, c)
}

func TestEvidenceRankOrdering(t *testing.T) {
	require.True(t, RankExplicit > RankConvention)
	require.True(t, RankConvention > RankTemplateMeta)
}

func TestCatalogAddAndLookup(t *testing.T) {
	c := NewCatalog(nil)
	c.Add(&ResourceDef{
		Kind:    KindCustomElement,
		Name:    Known("user-card", OriginSource),
		Aliases: Known([]string{"uc"}, OriginSource),
	})

	r, ok := c.Element("user-card")
	require.True(t, ok)
	byAlias, ok := c.Element("uc")
	require.True(t, ok)
	require.Same(t, r, byAlias)

	_, ok = c.Element("missing")
	require.False(t, ok)

	// A nameless (stub-named) resource is unreachable and not registered.
	before := len(c.Resources())
	c.Add(&ResourceDef{Kind: KindCustomElement, Name: Unknown[string]()})
	require.Len(t, c.Resources(), before)
}

func TestBuiltinControllersPresent(t *testing.T) {
	c := NewCatalog(nil)
	repeat, ok := c.Controller("repeat")
	require.True(t, ok)
	require.Equal(t, ScopeIterator, repeat.Controller.Scope)
	require.Equal(t, "key", repeat.Controller.TailProps["key"])

	with, ok := c.Controller("with")
	require.True(t, ok)
	require.Equal(t, ScopeWith, with.Controller.Scope)
}

func TestNativeSchema(t *testing.T) {
	s := DefaultNativeSchema()

	typ, ok := s.Prop("input", "checked")
	require.True(t, ok)
	require.Equal(t, "boolean", typ)

	// Global props apply to any known tag.
	_, ok = s.Prop("div", "title")
	require.True(t, ok)

	_, ok = s.Prop("div", "checked")
	require.False(t, ok)

	require.True(t, s.TwoWayDefault("input", "checked"))
	require.False(t, s.TwoWayDefault("div", "title"))
	require.True(t, s.KnownTag("div"))
	require.False(t, s.KnownTag("user-card"))
}

func TestNativeSchemaConfigurableTwoWay(t *testing.T) {
	s := NewNativeSchema(map[string][]string{"input": {"value"}})
	require.True(t, s.TwoWayDefault("input", "value"))
	require.False(t, s.TwoWayDefault("input", "checked"))
}

func TestStubController(t *testing.T) {
	stub := StubController("unknown-ctrl")
	require.True(t, stub.IsStub)
	require.Equal(t, KindTemplateController, stub.Kind)
	require.Equal(t, "value", stub.Controller.PrimaryProp)
}
