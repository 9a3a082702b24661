package catalog

import (
	"sort"
)

// EvidenceRank orders the channels the assembler converges. Exactly three
// levels exist; higher wins.
type EvidenceRank int

const (
	RankTemplateMeta EvidenceRank = iota + 1
	RankConvention
	RankExplicit
)

func (r EvidenceRank) String() string {
	switch r {
	case RankExplicit:
		return "explicit"
	case RankConvention:
		return "convention"
	case RankTemplateMeta:
		return "template-meta"
	}
	return "unranked"
}

// Confidence is a total order over catalog trust levels.
type Confidence int

const (
	ConfidenceManual Confidence = iota
	ConfidenceConservative
	ConfidencePartial
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidencePartial:
		return "partial"
	case ConfidenceConservative:
		return "conservative"
	}
	return "manual"
}

// Demote returns the lower of the two levels. All demotion goes through
// this min-join so confidence can only fall during a run.
func (c Confidence) Demote(to Confidence) Confidence {
	if to < c {
		return to
	}
	return c
}

// Provider is what template linking consumes: the set of known resources
// plus the native DOM schema.
type Provider interface {
	Element(name string) (*ResourceDef, bool)
	Attribute(name string) (*ResourceDef, bool)
	Controller(name string) (*ResourceDef, bool)
	ValueConverter(name string) (*ResourceDef, bool)
	BindingBehavior(name string) (*ResourceDef, bool)
	Native() *NativeSchema
	Confidence() Confidence
}

// Catalog is the concrete provider assembled by discovery.
type Catalog struct {
	elements    map[string]*ResourceDef
	attributes  map[string]*ResourceDef
	controllers map[string]*ResourceDef
	converters  map[string]*ResourceDef
	behaviors   map[string]*ResourceDef
	native      *NativeSchema
	confidence  Confidence
}

func NewCatalog(native *NativeSchema) *Catalog {
	if native == nil {
		native = DefaultNativeSchema()
	}
	c := &Catalog{
		elements:    make(map[string]*ResourceDef),
		attributes:  make(map[string]*ResourceDef),
		controllers: make(map[string]*ResourceDef),
		converters:  make(map[string]*ResourceDef),
		behaviors:   make(map[string]*ResourceDef),
		native:      native,
		confidence:  ConfidenceHigh,
	}
	for _, ctrl := range BuiltinControllers() {
		c.Add(ctrl)
	}
	return c
}

// Add registers a resource under its name and aliases. Unknown names are
// skipped: a nameless resource is unreachable from markup.
func (c *Catalog) Add(r *ResourceDef) {
	name, stubbed := r.Name.OrStub("")
	if stubbed || name == "" {
		return
	}
	names := []string{name}
	if r.Aliases.IsKnown() {
		names = append(names, r.Aliases.Value...)
	}
	for _, n := range names {
		switch r.Kind {
		case KindCustomElement:
			c.elements[n] = r
		case KindCustomAttribute:
			c.attributes[n] = r
		case KindTemplateController:
			c.controllers[n] = r
		case KindValueConverter:
			c.converters[n] = r
		case KindBindingBehavior:
			c.behaviors[n] = r
		}
	}
}

func (c *Catalog) SetConfidence(level Confidence) {
	c.confidence = c.confidence.Demote(level)
}

func (c *Catalog) Element(name string) (*ResourceDef, bool) {
	r, ok := c.elements[name]
	return r, ok
}

func (c *Catalog) Attribute(name string) (*ResourceDef, bool) {
	r, ok := c.attributes[name]
	return r, ok
}

func (c *Catalog) Controller(name string) (*ResourceDef, bool) {
	r, ok := c.controllers[name]
	return r, ok
}

func (c *Catalog) ValueConverter(name string) (*ResourceDef, bool) {
	r, ok := c.converters[name]
	return r, ok
}

func (c *Catalog) BindingBehavior(name string) (*ResourceDef, bool) {
	r, ok := c.behaviors[name]
	return r, ok
}

func (c *Catalog) Native() *NativeSchema {
	return c.native
}

func (c *Catalog) Confidence() Confidence {
	return c.confidence
}

// Resources lists everything registered, sorted by kind then name, for
// snapshots and tests.
func (c *Catalog) Resources() []*ResourceDef {
	seen := map[*ResourceDef]bool{}
	var out []*ResourceDef
	for _, m := range []map[string]*ResourceDef{c.elements, c.attributes, c.controllers, c.converters, c.behaviors} {
		for _, r := range m {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name.Value < out[j].Name.Value
	})
	return out
}

// BuiltinControllers returns the controller configs shipped with the
// runtime: these exist even in an empty project.
func BuiltinControllers() []*ResourceDef {
	ctrl := func(name, primary string, scope ControllerScope, tail map[string]string) *ResourceDef {
		r := &ResourceDef{
			Kind: KindTemplateController,
			Name: Known(name, OriginBuiltin),
			Controller: &ControllerSpec{
				PrimaryProp: primary,
				TailProps:   tail,
				Scope:       scope,
			},
		}
		return r
	}
	return []*ResourceDef{
		ctrl("repeat", "items", ScopeIterator, map[string]string{"key": "key"}),
		ctrl("with", "value", ScopeWith, nil),
		ctrl("if", "value", ScopeNone, nil),
		ctrl("else", "value", ScopeNone, nil),
		ctrl("switch", "value", ScopeNone, nil),
		ctrl("case", "value", ScopeNone, nil),
		ctrl("portal", "target", ScopeNone, nil),
	}
}
