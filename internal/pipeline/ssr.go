package pipeline

import (
	"fmt"
	"strings"

	"weft/internal/core/span"
)

// SsrPlan assigns hydration ids to the nodes the client must find again
// after server rendering. A node needs an id the moment it carries its
// first dynamic instruction; purely static subtrees stay unmarked.
type SsrPlan struct {
	Template     *LinkedTemplate
	HydrationIds map[span.NodeId]string
}

func PlanSsr(lt *LinkedTemplate) *SsrPlan {
	plan := &SsrPlan{
		Template:     lt,
		HydrationIds: make(map[span.NodeId]string),
	}
	next := 0
	lt.Walk(func(n *LinkedNode) {
		for _, inst := range n.Instructions {
			if inst.Kind == InstSetAttribute {
				continue
			}
			plan.HydrationIds[n.Node.Id] = fmt.Sprintf("h%d", next)
			next++
			break
		}
	})
	return plan
}

// voidTags render without a closing tag.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// EmitSsr renders the static server-side document. Dynamic attributes are
// dropped (the client binds them after hydration), static attributes render
// as authored, and text interpolations leave marker comments the hydrator
// pairs with expression slots.
func EmitSsr(plan *SsrPlan) string {
	var b strings.Builder
	for _, root := range plan.Template.Roots {
		emitSsrNode(&b, plan, root)
	}
	return b.String()
}

func emitSsrNode(b *strings.Builder, plan *SsrPlan, n *LinkedNode) {
	source := plan.Template.IR.Source
	switch n.Node.Kind {
	case IRComment:
		b.WriteString(n.Node.Span.Slice(source))
	case IRText:
		emitSsrText(b, plan, n)
	case IRElement, IRTemplate:
		tag := n.Node.Tag
		b.WriteByte('<')
		b.WriteString(tag)
		if hid, ok := plan.HydrationIds[n.Node.Id]; ok {
			fmt.Fprintf(b, ` data-weft-hydrate="%s"`, hid)
		}
		for _, inst := range n.Instructions {
			if inst.Kind == InstSetAttribute {
				fmt.Fprintf(b, ` %s="%s"`, inst.Target, inst.Value)
			}
		}
		b.WriteByte('>')
		if voidTags[tag] {
			return
		}
		for _, c := range n.Children {
			emitSsrNode(b, plan, c)
		}
		fmt.Fprintf(b, "</%s>", tag)
	}
}

func emitSsrText(b *strings.Builder, plan *SsrPlan, n *LinkedNode) {
	for _, inst := range n.Instructions {
		if inst.Kind != InstTextBinding || inst.Interp == nil {
			continue
		}
		hid := plan.HydrationIds[n.Node.Id]
		for i, part := range inst.Interp.Parts {
			b.WriteString(part)
			if i < len(inst.Interp.ExprIds) {
				fmt.Fprintf(b, "<!--%s:%d-->", hid, i)
			}
		}
		return
	}
	b.WriteString(n.Node.Span.Slice(plan.Template.IR.Source))
}
