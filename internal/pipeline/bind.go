package pipeline

import (
	"weft/internal/catalog"
	"weft/internal/core/span"
	"weft/internal/expr"
)

// FrameOrigin says what introduced a scope frame.
type FrameOrigin string

const (
	FrameRoot     FrameOrigin = "root"
	FrameIterator FrameOrigin = "iterator"
	FrameWith     FrameOrigin = "with"
	FrameOverlay  FrameOrigin = "overlay"
)

// Local is one name a frame introduces. FromExpr is the expression whose
// runtime value populates it: the iterable for iterator locals, the let
// initializer for let locals.
type Local struct {
	Name     string
	FromExpr span.ExprId
}

// ScopeFrame is one lexical frame of the template. Name lookup walks
// Locals, then Parent; the root frame resolves against the view model.
type ScopeFrame struct {
	Id     span.FrameId
	Origin FrameOrigin
	Parent *ScopeFrame

	// Subject is the expression the frame's base derives from: the iterable
	// for iterator frames, the object for with frames. Empty for root.
	Subject span.ExprId

	Locals   map[string]Local
	Children []*ScopeFrame
}

func (f *ScopeFrame) child(origin FrameOrigin, subject span.ExprId) *ScopeFrame {
	c := &ScopeFrame{
		Id:      span.FrameIdFor(f.Id, len(f.Children)),
		Origin:  origin,
		Parent:  f,
		Subject: subject,
		Locals:  make(map[string]Local),
	}
	f.Children = append(f.Children, c)
	return c
}

// Resolve walks the frame chain for a name. The second result is the frame
// that owns it; nil means the name falls through to the view model.
func (f *ScopeFrame) Resolve(name string) (Local, *ScopeFrame) {
	for cur := f; cur != nil; cur = cur.Parent {
		if local, ok := cur.Locals[name]; ok {
			return local, cur
		}
	}
	return Local{}, nil
}

// BoundTemplate is the bind phase output: the frame tree plus the
// expression-to-frame placement every later phase keys on.
type BoundTemplate struct {
	Linked *LinkedTemplate
	Root   *ScopeFrame
	Frames map[span.FrameId]*ScopeFrame
	ByExpr map[span.ExprId]span.FrameId
}

func (bt *BoundTemplate) FrameOf(id span.ExprId) *ScopeFrame {
	return bt.Frames[bt.ByExpr[id]]
}

// Bind builds the scope-frame tree for a linked template. A controller's
// own expression always evaluates in the frame outside the controller; the
// frame it introduces covers the node's remaining bindings and children.
func Bind(lt *LinkedTemplate) *BoundTemplate {
	root := &ScopeFrame{
		Id:     span.FrameIdFor("", 0),
		Origin: FrameRoot,
		Locals: make(map[string]Local),
	}
	bt := &BoundTemplate{
		Linked: lt,
		Root:   root,
		Frames: map[span.FrameId]*ScopeFrame{root.Id: root},
		ByExpr: make(map[span.ExprId]span.FrameId),
	}
	for _, node := range lt.Roots {
		bt.bindNode(node, root)
	}
	return bt
}

func (bt *BoundTemplate) bindNode(node *LinkedNode, frame *ScopeFrame) {
	current := frame

	for _, inst := range node.Instructions {
		if inst.Resolved == TargetController {
			current = bt.bindController(inst, current)
			continue
		}
		bt.place(inst.Instruction, current)
	}

	for _, c := range node.Children {
		bt.bindNode(c, current)
	}
}

func (bt *BoundTemplate) bindController(inst LinkedInstruction, outer *ScopeFrame) *ScopeFrame {
	// The controller's value is computed before the controller exists.
	if inst.ExprId != "" {
		bt.ByExpr[inst.ExprId] = outer.Id
	}

	scope := catalog.ScopeNone
	if inst.Controller != nil && inst.Controller.Controller != nil {
		scope = inst.Controller.Controller.Scope
	}

	inner := outer
	switch scope {
	case catalog.ScopeIterator:
		inner = outer.child(FrameIterator, inst.ExprId)
		if name := bt.iteratorDeclName(inst.ExprId); name != "" {
			inner.Locals[name] = Local{Name: name, FromExpr: inst.ExprId}
		}
	case catalog.ScopeWith:
		inner = outer.child(FrameWith, inst.ExprId)
	case catalog.ScopeOverlay:
		inner = outer.child(FrameOverlay, inst.ExprId)
	}
	if inner != outer {
		bt.Frames[inner.Id] = inner
	}

	// Tail options read the introduced locals (repeat's key names item
	// properties), so they bind inside.
	for _, tail := range inst.Tail {
		if tail.ExprId != "" {
			bt.ByExpr[tail.ExprId] = inner.Id
		}
	}
	return inner
}

func (bt *BoundTemplate) place(inst Instruction, frame *ScopeFrame) {
	if inst.Kind == InstHydrateLet && inst.ExprId != "" {
		bt.ByExpr[inst.ExprId] = frame.Id
		frame.Locals[inst.Target] = Local{Name: inst.Target, FromExpr: inst.ExprId}
		return
	}
	if inst.ExprId != "" {
		bt.ByExpr[inst.ExprId] = frame.Id
	}
	if inst.Interp != nil {
		for _, id := range inst.Interp.ExprIds {
			bt.ByExpr[id] = frame.Id
		}
	}
	for _, tail := range inst.TailOptions {
		if tail.ExprId != "" {
			bt.ByExpr[tail.ExprId] = frame.Id
		}
	}
}

func (bt *BoundTemplate) iteratorDeclName(id span.ExprId) string {
	entry, ok := bt.Linked.IR.Exprs.Lookup(id)
	if !ok || entry.Ast == nil {
		return ""
	}
	if forOf, ok := entry.Ast.(*expr.ForOf); ok {
		return forOf.DeclName
	}
	return ""
}
