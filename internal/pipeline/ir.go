// Package pipeline compiles one template through ordered phases: lower,
// link, bind, typecheck, overlay plan/emit and mapping, with a parallel SSR
// plan/emit branch. Each phase's output is the next phase's input; nothing
// reaches back.
package pipeline

import (
	"weft/internal/catalog"
	"weft/internal/core/span"
	"weft/internal/exprtab"
)

// IRNodeKind classifies lowered template nodes.
type IRNodeKind string

const (
	IRElement  IRNodeKind = "element"
	IRText     IRNodeKind = "text"
	IRComment  IRNodeKind = "comment"
	IRTemplate IRNodeKind = "template"
)

// IRNode is one node of the lowered template tree. Ids derive from tree
// path, so they are stable under unrelated edits only within one lowering
// run; callers re-lower on structural change.
type IRNode struct {
	Id   span.NodeId
	Kind IRNodeKind
	Tag  string
	Span span.SourceSpan

	Instructions []Instruction
	Children     []*IRNode
}

// InstructionKind is the closed set of lowered instruction rows.
type InstructionKind string

const (
	InstPropertyBinding           InstructionKind = "property-binding"
	InstAttributeBinding          InstructionKind = "attribute-binding"
	InstStyleBinding              InstructionKind = "style-binding"
	InstListenerBinding           InstructionKind = "listener-binding"
	InstRefBinding                InstructionKind = "ref-binding"
	InstTextBinding               InstructionKind = "text-binding"
	InstSetAttribute              InstructionKind = "set-attribute"
	InstIteratorBinding           InstructionKind = "iterator-binding"
	InstHydrateLet                InstructionKind = "hydrate-let"
	InstHydrateElement            InstructionKind = "hydrate-element"
	InstHydrateAttribute          InstructionKind = "hydrate-attribute"
	InstHydrateTemplateController InstructionKind = "hydrate-template-controller"
)

// Instruction is one lowered binding or static set on a node.
type Instruction struct {
	Kind InstructionKind `json:"kind"`
	Node span.NodeId     `json:"node"`

	// Target is the attribute target as authored (without the command).
	Target string `json:"target,omitempty"`
	// Command is the authored binding command ("bind", "trigger", ...).
	Command string `json:"command,omitempty"`

	// ExprId is set for single-expression instructions.
	ExprId span.ExprId `json:"exprId,omitempty"`
	// Interp is set for text and interpolated-attribute instructions.
	Interp *InterpIR `json:"interp,omitempty"`
	// Value is the static text for set-attribute rows.
	Value string `json:"value,omitempty"`

	// TailOptions carries semicolon-delimited iterator options, resolved
	// against the controller spec at link time.
	TailOptions []TailOption `json:"tailOptions,omitempty"`

	// Span covers the attribute value (or text content); TargetSpan covers
	// the attribute name.
	Span       span.SourceSpan `json:"span"`
	TargetSpan span.SourceSpan `json:"targetSpan,omitempty"`
}

// TailOption is one `name: expr` entry after the iterator declaration.
type TailOption struct {
	Name   string          `json:"name"`
	ExprId span.ExprId     `json:"exprId"`
	Span   span.SourceSpan `json:"span"`
}

// InterpIR is one interpolated content region. Parts brackets the
// expressions: len(Parts) == len(ExprIds)+1 always, with empty strings at
// touching edges.
type InterpIR struct {
	Parts   []string          `json:"parts"`
	ExprIds []span.ExprId     `json:"exprIds"`
	Spans   []span.SourceSpan `json:"spans"`
}

// TemplateMeta is the structural metadata lowered out of reserved meta
// elements and attributes.
type TemplateMeta struct {
	Name          string                      `json:"name,omitempty"`
	Containerless bool                        `json:"containerless,omitempty"`
	ShadowMode    string                      `json:"shadowMode,omitempty"`
	Aliases       []string                    `json:"aliases,omitempty"`
	Bindables     map[string]catalog.Bindable `json:"bindables,omitempty"`
	HasSlots      bool                        `json:"hasSlots,omitempty"`
}

// TemplateIR is the lowering result for one template.
type TemplateIR struct {
	File span.FileId
	// Source is the original, un-normalized template text every span
	// indexes into.
	Source string
	Hash   string
	Roots  []*IRNode
	Meta   TemplateMeta
	Exprs  *exprtab.Table
}

// Walk visits IR nodes depth-first, parents first.
func (ir *TemplateIR) Walk(fn func(n *IRNode)) {
	var rec func(n *IRNode)
	rec = func(n *IRNode) {
		fn(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	for _, r := range ir.Roots {
		rec(r)
	}
}

// Instructions flattens all instruction rows in document order.
func (ir *TemplateIR) Instructions() []Instruction {
	var out []Instruction
	ir.Walk(func(n *IRNode) {
		out = append(out, n.Instructions...)
	})
	return out
}
