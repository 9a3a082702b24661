package catalog

import (
	"sort"

	"weft/internal/core/span"
)

// ResourceKind enumerates the declaration-independent resource variants.
type ResourceKind string

const (
	KindCustomElement      ResourceKind = "custom-element"
	KindCustomAttribute    ResourceKind = "custom-attribute"
	KindTemplateController ResourceKind = "template-controller"
	KindValueConverter     ResourceKind = "value-converter"
	KindBindingBehavior    ResourceKind = "binding-behavior"
)

// BindingMode values recognized across bindables and commands.
const (
	ModeDefault  = "default"
	ModeToView   = "toView"
	ModeTwoWay   = "twoWay"
	ModeFromView = "fromView"
	ModeOneTime  = "oneTime"
	ModeListener = "listener"
	ModeRef      = "ref"
)

// Bindable is one bindable property declared by a resource.
type Bindable struct {
	Property  string          `json:"property"`
	Attribute Sourced[string] `json:"attribute"`
	Mode      Sourced[string] `json:"mode"`
	Primary   Sourced[bool]   `json:"primary"`
	TypeName  Sourced[string] `json:"typeName"`
}

// ResourceDef is one converged resource. Per-field Sourced wrappers record
// which evidence channel produced each value; unknown fields render as
// stubs downstream.
type ResourceDef struct {
	Id      span.SymbolId     `json:"id"`
	Kind    ResourceKind      `json:"kind"`
	Name    Sourced[string]   `json:"name"`
	Aliases Sourced[[]string] `json:"aliases"`

	// DeclFile/DeclName point at the defining class when known.
	DeclFile Sourced[string] `json:"declFile"`
	DeclName Sourced[string] `json:"declName"`

	Bindables map[string]Bindable `json:"bindables,omitempty"`

	// Custom-element specifics.
	Containerless Sourced[bool]   `json:"containerless"`
	ShadowMode    Sourced[string] `json:"shadowMode"`
	HasSlots      Sourced[bool]   `json:"hasSlots"`

	// Template-controller specifics.
	Controller *ControllerSpec `json:"controller,omitempty"`

	// IsStub marks a placeholder substituted for an unresolvable resource;
	// diagnostics cascading from it are suppressible because the root cause
	// was already reported.
	IsStub bool `json:"isStub,omitempty"`

	// Convergence explains which candidate evidence the assembler chose.
	Convergence []ConvergenceNote `json:"convergence,omitempty"`
}

// ControllerSpec describes a template controller's binding surface.
type ControllerSpec struct {
	// PrimaryProp receives the controller's value binding.
	PrimaryProp string `json:"primaryProp"`
	Props       map[string]Bindable `json:"props,omitempty"`
	// TailProps maps semicolon-delimited tail option names (e.g. repeat's
	// `key`) to the controller prop they set.
	TailProps map[string]string `json:"tailProps,omitempty"`
	// Scope describes the lexical frame the controller introduces.
	Scope ControllerScope `json:"scope"`
}

type ControllerScope string

const (
	ScopeNone     ControllerScope = "none"
	ScopeIterator ControllerScope = "iterator"
	ScopeWith     ControllerScope = "with"
	ScopeOverlay  ControllerScope = "overlay"
)

// ConvergenceNote records one assembler decision between evidence
// candidates for a resource field.
type ConvergenceNote struct {
	Field    string       `json:"field"`
	Chosen   EvidenceRank `json:"chosen"`
	Rejected []EvidenceRank `json:"rejected,omitempty"`
}

// SortedBindables returns bindables ordered by property name for stable
// snapshots.
func (r *ResourceDef) SortedBindables() []Bindable {
	out := make([]Bindable, 0, len(r.Bindables))
	for _, b := range r.Bindables {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Property < out[j].Property })
	return out
}

// BindableByAttribute finds a bindable by its attribute spelling, falling
// back to the property name.
func (r *ResourceDef) BindableByAttribute(attr string) (Bindable, bool) {
	for _, b := range r.Bindables {
		if name, _ := b.Attribute.OrStub(b.Property); name == attr {
			return b, true
		}
	}
	b, ok := r.Bindables[attr]
	return b, ok
}

// StubController builds the placeholder substituted for an unknown
// controller so linking can proceed after the root-cause diagnostic.
func StubController(name string) *ResourceDef {
	return &ResourceDef{
		Id:     span.SymbolIdFor(name, string(KindTemplateController), "stub"),
		Kind:   KindTemplateController,
		Name:   Known(name, OriginBuiltin),
		IsStub: true,
		Controller: &ControllerSpec{
			PrimaryProp: "value",
			Scope:       ScopeNone,
		},
	}
}
