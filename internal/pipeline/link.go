package pipeline

import (
	"fmt"

	"weft/internal/catalog"
	"weft/internal/core/diag"
)

// ElementSem classifies how a lowered element resolved against the catalog.
type ElementSem string

const (
	SemCustom  ElementSem = "custom"
	SemNative  ElementSem = "native"
	SemUnknown ElementSem = "unknown"
)

// TargetKind says what a binding target turned out to be.
type TargetKind string

const (
	TargetBindable   TargetKind = "bindable"
	TargetNativeProp TargetKind = "native-prop"
	TargetController TargetKind = "controller"
	TargetCustomAttr TargetKind = "custom-attribute"
	TargetListener   TargetKind = "listener"
	TargetRef        TargetKind = "ref"
	TargetAttr       TargetKind = "attr"
	TargetUnknown    TargetKind = "unknown"
)

// LinkedInstruction is an instruction row plus its target resolution.
type LinkedInstruction struct {
	Instruction

	Resolved TargetKind
	// Mode is the effective binding mode after precedence: an explicit
	// non-default command beats the declared bindable mode, which beats the
	// native two-way default table, which beats toView.
	Mode string
	// PropType is the declared type of the resolved target when known.
	PropType string

	// Controller resolution, set when Resolved == TargetController.
	Controller     *catalog.ResourceDef
	ControllerProp string
	Tail           []LinkedTail
}

// LinkedTail is a tail option mapped to its controller prop. Prop is empty
// when the option name is not in the controller's surface.
type LinkedTail struct {
	TailOption
	Prop string
}

// LinkedNode pairs an IR node with its element semantics.
type LinkedNode struct {
	Node    *IRNode
	Sem     ElementSem
	Element *catalog.ResourceDef

	Instructions []LinkedInstruction
	Children     []*LinkedNode
}

// LinkedTemplate is the link phase output.
type LinkedTemplate struct {
	IR         *TemplateIR
	Roots      []*LinkedNode
	Confidence catalog.Confidence
}

// Walk visits linked nodes depth-first, parents first.
func (lt *LinkedTemplate) Walk(fn func(n *LinkedNode)) {
	var rec func(n *LinkedNode)
	rec = func(n *LinkedNode) {
		fn(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	for _, r := range lt.Roots {
		rec(r)
	}
}

// Instructions flattens linked rows in document order.
func (lt *LinkedTemplate) Instructions() []LinkedInstruction {
	var out []LinkedInstruction
	lt.Walk(func(n *LinkedNode) {
		out = append(out, n.Instructions...)
	})
	return out
}

// Linker resolves lowered instructions against the resource catalog and
// native schema.
type Linker struct {
	provider catalog.Provider
	commands map[string]string
	sink     diag.Sink
}

func NewLinker(provider catalog.Provider, commands map[string]string, sink diag.Sink) *Linker {
	if sink == nil {
		sink = diag.Discard{}
	}
	return &Linker{provider: provider, commands: commands, sink: sink}
}

func (l *Linker) Link(ir *TemplateIR) *LinkedTemplate {
	lt := &LinkedTemplate{IR: ir, Confidence: l.provider.Confidence()}
	for _, root := range ir.Roots {
		lt.Roots = append(lt.Roots, l.linkNode(root))
	}
	return lt
}

func (l *Linker) linkNode(n *IRNode) *LinkedNode {
	node := &LinkedNode{Node: n}

	switch n.Kind {
	case IRElement:
		if def, ok := l.provider.Element(n.Tag); ok {
			node.Sem = SemCustom
			node.Element = def
		} else if l.provider.Native().KnownTag(n.Tag) {
			node.Sem = SemNative
		} else {
			node.Sem = SemUnknown
			l.sink.Report(diag.Diagnostic{
				Code:     "unknown-element",
				Message:  fmt.Sprintf("element <%s> is neither a known resource nor a native tag", n.Tag),
				Span:     n.Span,
				Severity: diag.SeverityWarning,
				Stage:    diag.StageLink,
			})
		}
	case IRTemplate:
		node.Sem = SemNative
	}

	for _, inst := range n.Instructions {
		node.Instructions = append(node.Instructions, l.linkInstruction(node, inst))
	}
	for _, c := range n.Children {
		node.Children = append(node.Children, l.linkNode(c))
	}
	return node
}

func (l *Linker) linkInstruction(node *LinkedNode, inst Instruction) LinkedInstruction {
	li := LinkedInstruction{Instruction: inst}

	switch inst.Kind {
	case InstListenerBinding:
		li.Resolved = TargetListener
		li.Mode = catalog.ModeListener
	case InstRefBinding:
		li.Resolved = TargetRef
		li.Mode = catalog.ModeRef
	case InstSetAttribute:
		li.Resolved = TargetAttr
	case InstIteratorBinding:
		l.linkController(node, &li)
	case InstPropertyBinding, InstStyleBinding:
		if _, ok := l.provider.Controller(inst.Target); ok {
			l.linkController(node, &li)
			break
		}
		if attrDef, ok := l.provider.Attribute(inst.Target); ok {
			li.Resolved = TargetCustomAttr
			li.Mode = l.effectiveMode(&li, primaryBindable(attrDef), node.Node.Tag, false)
			break
		}
		l.linkTarget(node, &li)
	case InstAttributeBinding:
		l.linkTarget(node, &li)
		li.Mode = catalog.ModeToView
	case InstTextBinding, InstHydrateLet:
		li.Mode = catalog.ModeToView
	}
	return li
}

// linkTarget resolves a plain binding target with the precedence bindable >
// native prop > unknown. Precedence is fixed so resolution stays
// deterministic when both surfaces carry the same name.
func (l *Linker) linkTarget(node *LinkedNode, li *LinkedInstruction) {
	if node.Element != nil {
		if b, ok := node.Element.BindableByAttribute(li.Target); ok {
			li.Resolved = TargetBindable
			li.PropType, _ = b.TypeName.OrStub("")
			li.Mode = l.effectiveMode(li, b, node.Node.Tag, false)
			return
		}
	}

	if typeName, ok := l.provider.Native().Prop(node.Node.Tag, li.Target); ok {
		li.Resolved = TargetNativeProp
		li.PropType = typeName
		li.Mode = l.effectiveMode(li, catalog.Bindable{}, node.Node.Tag, true)
		return
	}

	li.Resolved = TargetUnknown
	li.Mode = catalog.ModeToView

	// An unknown element already got its own diagnostic; a second one per
	// attribute would only be noise.
	suppressed := node.Sem == SemUnknown || (node.Element != nil && node.Element.IsStub)
	reason := "no-prop"
	if node.Sem == SemUnknown {
		reason = "no-element"
	}
	l.sink.Report(diag.Diagnostic{
		Code:       "unknown-binding-target",
		Message:    fmt.Sprintf("cannot resolve binding target %q on <%s>", li.Target, node.Node.Tag),
		Span:       li.TargetSpan,
		Severity:   diag.SeverityWarning,
		Stage:      diag.StageLink,
		Data:       map[string]interface{}{"reason": reason},
		Suppressed: suppressed,
	})
}

// linkController resolves a template-controller usage. A missing controller
// is replaced by a stub after one root-cause diagnostic; everything
// cascading from the stub reports suppressed.
func (l *Linker) linkController(node *LinkedNode, li *LinkedInstruction) {
	li.Resolved = TargetController

	def, ok := l.provider.Controller(li.Target)
	if !ok {
		def = catalog.StubController(li.Target)
		l.sink.Report(diag.Diagnostic{
			Code:     "unknown-controller",
			Message:  fmt.Sprintf("no template controller named %q", li.Target),
			Span:     li.TargetSpan,
			Severity: diag.SeverityError,
			Stage:    diag.StageLink,
		})
	}
	li.Controller = def

	spec := def.Controller
	if spec == nil {
		spec = &catalog.ControllerSpec{PrimaryProp: "value", Scope: catalog.ScopeNone}
	}
	li.ControllerProp = spec.PrimaryProp
	li.Mode = l.effectiveMode(li, spec.Props[spec.PrimaryProp], node.Node.Tag, false)

	for _, tail := range li.TailOptions {
		lt := LinkedTail{TailOption: tail}
		if prop, found := spec.TailProps[tail.Name]; found {
			lt.Prop = prop
		} else {
			l.sink.Report(diag.Diagnostic{
				Code:       "unknown-tail-option",
				Message:    fmt.Sprintf("controller %q has no option %q", li.Target, tail.Name),
				Span:       tail.Span,
				Severity:   diag.SeverityWarning,
				Stage:      diag.StageLink,
				Suppressed: def.IsStub,
			})
		}
		li.Tail = append(li.Tail, lt)
	}
}

func (l *Linker) effectiveMode(li *LinkedInstruction, declared catalog.Bindable, tag string, native bool) string {
	if cmdMode, ok := l.commands[li.Command]; ok && cmdMode != catalog.ModeDefault && cmdMode != "" {
		return cmdMode
	}
	if mode, stubbed := declared.Mode.OrStub(""); !stubbed && mode != "" && mode != catalog.ModeDefault {
		return mode
	}
	if native && l.provider.Native().TwoWayDefault(tag, li.Target) {
		return catalog.ModeTwoWay
	}
	return catalog.ModeToView
}

// primaryBindable picks the bindable a bare custom-attribute value binds:
// the one marked primary, else "value", else a zero bindable.
func primaryBindable(def *catalog.ResourceDef) catalog.Bindable {
	for _, b := range def.Bindables {
		if primary, stubbed := b.Primary.OrStub(false); !stubbed && primary {
			return b
		}
	}
	if b, ok := def.Bindables["value"]; ok {
		return b
	}
	return catalog.Bindable{}
}
