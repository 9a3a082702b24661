package pipeline

import (
	"fmt"
	"strings"

	"weft/internal/core/span"
	"weft/internal/expr"
)

// OverlayItem is one expression scheduled for overlay emission. Body is
// the exact byte slice of template text the lambda will carry; keeping it
// byte-identical makes the html-to-overlay mapping a constant shift.
type OverlayItem struct {
	ExprId span.ExprId
	Frame  span.FrameId
	Roots  []string
	Body   string
	// HtmlStart is the file offset Body starts at in the template.
	HtmlStart int
	// segs are access segments relative to Body.
	segs []expr.Range
}

// OverlayPlan fixes emission order and per-expression shape before any
// text exists, so emit is a pure rendering step.
type OverlayPlan struct {
	Template *BoundTemplate
	VmType   string
	Items    []OverlayItem
}

// PlanOverlay schedules every well-formed expression in document order.
// Iterator declarations contribute only their iterable: the declared local
// is a binding position, not an expression.
func PlanOverlay(bt *BoundTemplate, vmType string) *OverlayPlan {
	plan := &OverlayPlan{Template: bt, VmType: vmType}
	for _, id := range bt.Linked.IR.Exprs.Ids() {
		entry, ok := bt.Linked.IR.Exprs.Lookup(id)
		if !ok || entry.IsBad() {
			continue
		}
		item := OverlayItem{ExprId: id, Frame: bt.ByExpr[id]}
		if item.Frame == "" {
			item.Frame = bt.Root.Id
		}

		ast := entry.Ast
		bodyOffset := 0
		if forOf, isIter := ast.(*expr.ForOf); isIter {
			ast = forOf.Iterable
			bodyOffset = forOf.Iterable.Span().Start
		}
		bodyEnd := ast.Span().End
		if bodyEnd > len(entry.Code) {
			bodyEnd = len(entry.Code)
		}
		item.Body = entry.Code[bodyOffset:bodyEnd]
		item.HtmlStart = entry.Start + bodyOffset
		item.Roots = expr.Roots(ast)
		item.segs = accessSegments(ast, bodyOffset)

		plan.Items = append(plan.Items, item)
	}
	return plan
}

// accessSegments collects the member-access chain pieces of an expression,
// shifted to be body-relative. Chains stay contiguous because each link
// range starts exactly where its base ends.
func accessSegments(ast expr.Node, bodyOffset int) []expr.Range {
	var out []expr.Range
	expr.Walk(ast, func(n expr.Node) {
		switch t := n.(type) {
		case *expr.AccessScope:
			out = append(out, shift(t.Loc, bodyOffset))
		case *expr.AccessMember:
			out = append(out, shift(t.LinkLoc, bodyOffset))
		case *expr.AccessKeyed:
			out = append(out, shift(t.LinkLoc, bodyOffset))
		}
	})
	return out
}

func shift(r expr.Range, by int) expr.Range {
	return expr.Range{Start: r.Start - by, End: r.End - by}
}

// Overlay is the emitted virtual TypeScript document plus its mapping back
// into the template.
type Overlay struct {
	File    span.FileId
	Text    string
	Mapping *Mapping
}

// EmitOverlay renders the plan. Each expression becomes a lambda whose
// destructured parameter pulls the expression's root names out of its
// frame type, and whose parenthesized body is the template text verbatim.
func EmitOverlay(plan *OverlayPlan) *Overlay {
	bt := plan.Template
	overlayFile := span.FileId(string(bt.Linked.IR.File) + ".__overlay.ts")

	var b strings.Builder
	fmt.Fprintf(&b, "// generated overlay for %s (%s)\n", bt.Linked.IR.File, bt.Linked.IR.Hash)
	b.WriteString("type __Item<T> = T extends readonly (infer U)[] ? U : never;\n")

	em := &overlayEmitter{
		plan:     plan,
		b:        &b,
		varNames: make(map[span.ExprId]string),
		framesUp: make(map[span.FrameId]bool),
	}
	mapping := &Mapping{
		File:        bt.Linked.IR.File,
		OverlayFile: overlayFile,
		byExpr:      make(map[span.ExprId]int),
	}

	for i, item := range plan.Items {
		em.ensureFrame(bt.Frames[item.Frame])

		name := fmt.Sprintf("__x%d", i)
		em.varNames[item.ExprId] = name

		param := "()"
		if len(item.Roots) > 0 {
			param = fmt.Sprintf("({ %s }: %s)", strings.Join(item.Roots, ", "), em.paramType(item))
		}
		fmt.Fprintf(&b, "const %s = %s => (", name, param)
		bodyStart := b.Len()
		b.WriteString(item.Body)
		b.WriteString(");\n")

		entry := MappingEntry{
			ExprId:      item.ExprId,
			FrameId:     item.Frame,
			HtmlSpan:    span.New(bt.Linked.IR.File, item.HtmlStart, item.HtmlStart+len(item.Body)),
			OverlaySpan: span.New(overlayFile, bodyStart, bodyStart+len(item.Body)),
		}
		for _, seg := range item.segs {
			entry.Segments = append(entry.Segments, Segment{
				Html:    span.New(bt.Linked.IR.File, item.HtmlStart+seg.Start, item.HtmlStart+seg.End),
				Overlay: span.New(overlayFile, bodyStart+seg.Start, bodyStart+seg.End),
			})
		}
		mapping.byExpr[item.ExprId] = len(mapping.Entries)
		mapping.Entries = append(mapping.Entries, entry)
	}

	return &Overlay{File: overlayFile, Text: b.String(), Mapping: mapping}
}

type overlayEmitter struct {
	plan     *OverlayPlan
	b        *strings.Builder
	varNames map[span.ExprId]string
	framesUp map[span.FrameId]bool
}

// ensureFrame emits the frame's scope type alias, parents first. A frame's
// subject expression always binds in the parent frame and appears earlier
// in document order, so its lambda already exists by the time the alias
// references it.
func (em *overlayEmitter) ensureFrame(f *ScopeFrame) {
	if f == nil || em.framesUp[f.Id] {
		return
	}
	em.framesUp[f.Id] = true

	if f.Parent == nil {
		fmt.Fprintf(em.b, "type %s = %s;\n", frameAlias(f.Id), em.plan.VmType)
		return
	}
	em.ensureFrame(f.Parent)

	parent := frameAlias(f.Parent.Id)
	subject := em.varNames[f.Subject]
	switch f.Origin {
	case FrameIterator:
		local := iteratorLocal(f)
		if subject == "" || local == "" {
			fmt.Fprintf(em.b, "type %s = %s;\n", frameAlias(f.Id), parent)
			return
		}
		fmt.Fprintf(em.b, "type %s = %s & { %s: __Item<ReturnType<typeof %s>> };\n",
			frameAlias(f.Id), parent, local, subject)
	case FrameWith, FrameOverlay:
		if subject == "" {
			fmt.Fprintf(em.b, "type %s = %s;\n", frameAlias(f.Id), parent)
			return
		}
		fmt.Fprintf(em.b, "type %s = %s & ReturnType<typeof %s>;\n", frameAlias(f.Id), parent, subject)
	default:
		fmt.Fprintf(em.b, "type %s = %s;\n", frameAlias(f.Id), parent)
	}
}

// paramType is the frame alias, widened with any let locals the
// expression's roots resolve to. Let locals live in frames but not in the
// frame alias, since they appear after the frame type is fixed.
func (em *overlayEmitter) paramType(item OverlayItem) string {
	frame := em.plan.Template.Frames[item.Frame]
	parts := []string{frameAlias(item.Frame)}
	for _, root := range item.Roots {
		local, owner := frame.Resolve(root)
		if owner == nil || owner.Origin == FrameIterator && iteratorLocal(owner) == root {
			continue
		}
		if init := em.varNames[local.FromExpr]; init != "" {
			parts = append(parts, fmt.Sprintf("{ %s: ReturnType<typeof %s> }", root, init))
		}
	}
	return strings.Join(parts, " & ")
}

func iteratorLocal(f *ScopeFrame) string {
	for name, local := range f.Locals {
		if local.FromExpr == f.Subject {
			return name
		}
	}
	return ""
}

func frameAlias(id span.FrameId) string {
	return "__T_" + strings.ReplaceAll(string(id), ".", "_")
}
