package pipeline

import (
	"strings"

	"weft/internal/catalog"
	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/expr"
	"weft/internal/exprtab"
	"weft/internal/host"
)

// metaTags are reserved elements consumed into TemplateMeta instead of the
// IR tree.
var metaTags = map[string]bool{
	"bindable":       true,
	"containerless":  true,
	"use-shadow-dom": true,
	"alias":          true,
	"import":         true,
	"require":        true,
}

// Lowerer turns tokenized markup into TemplateIR. The recognized command
// set comes from configuration; lowering itself never hardcodes commands.
type Lowerer struct {
	commands map[string]string
	sink     diag.Sink
}

func NewLowerer(commands map[string]string, sink diag.Sink) *Lowerer {
	if sink == nil {
		sink = diag.Discard{}
	}
	return &Lowerer{commands: commands, sink: sink}
}

// Lower builds the IR for one document. Expression code is always sliced
// from the document's original source through spans, never read from
// normalized node values: normalization may have shifted byte content, and
// spans refer to the file as it is on disk.
func (l *Lowerer) Lower(doc *host.Document) *TemplateIR {
	ir := &TemplateIR{
		File:   doc.File,
		Source: doc.Source,
		Hash:   span.ContentHash([]byte(doc.Source)),
	}
	ir.Exprs = exprtab.New(ir.Hash)

	st := &lowerState{ir: ir, l: l}
	for _, root := range doc.Roots {
		if node := st.lowerNode(root, []int{len(ir.Roots)}); node != nil {
			ir.Roots = append(ir.Roots, node)
		}
	}
	return ir
}

type lowerState struct {
	ir *TemplateIR
	l  *Lowerer
}

func (st *lowerState) lowerNode(n *host.Node, path []int) *IRNode {
	switch n.Kind {
	case host.NodeComment:
		return &IRNode{Id: span.NodeIdFor(path), Kind: IRComment, Span: n.Span}
	case host.NodeText:
		return st.lowerText(n, path)
	case host.NodeElement:
		if metaTags[n.Tag] {
			st.lowerMeta(n)
			return nil
		}
		return st.lowerElement(n, path)
	}
	return nil
}

func (st *lowerState) lowerElement(n *host.Node, path []int) *IRNode {
	kind := IRElement
	if n.Tag == "template" {
		kind = IRTemplate
	}
	node := &IRNode{
		Id:   span.NodeIdFor(path),
		Kind: kind,
		Tag:  n.Tag,
		Span: n.Span,
	}
	if n.Tag == "slot" {
		st.ir.Meta.HasSlots = true
	}

	if n.Tag == "let" {
		for _, attr := range n.Attrs {
			node.Instructions = append(node.Instructions, st.lowerLetAttr(node.Id, attr))
		}
	} else {
		for _, attr := range n.Attrs {
			node.Instructions = append(node.Instructions, st.lowerAttr(node.Id, attr))
		}
	}

	for _, child := range n.Children {
		childPath := append(path[:len(path):len(path)], len(node.Children))
		if c := st.lowerNode(child, childPath); c != nil {
			node.Children = append(node.Children, c)
		}
	}
	return node
}

func (st *lowerState) lowerText(n *host.Node, path []int) *IRNode {
	node := &IRNode{Id: span.NodeIdFor(path), Kind: IRText, Span: n.Span}
	content := n.Span.Slice(st.ir.Source)
	if interp := st.lowerInterp(content, n.Span.Start, n.Span.File); interp != nil {
		node.Instructions = append(node.Instructions, Instruction{
			Kind:   InstTextBinding,
			Node:   node.Id,
			Interp: interp,
			Span:   n.Span,
		})
	}
	return node
}

// lowerInterp scans content (already sliced from the original source at
// base) and parses each embedded expression. Returns nil when the content
// is purely static.
func (st *lowerState) lowerInterp(content string, base int, file span.FileId) *InterpIR {
	parts, exprs := expr.SplitInterpolation(content)
	if len(exprs) == 0 {
		return nil
	}
	interp := &InterpIR{Parts: parts}
	for _, part := range exprs {
		start := base + part.Code.Start
		end := base + part.Code.End
		entry := st.parseExpr(start, end, expr.KindInterpolation, content[part.Code.Start:part.Code.End], file)
		interp.ExprIds = append(interp.ExprIds, entry.Id)
		interp.Spans = append(interp.Spans, span.New(file, start, end))
	}
	return interp
}

func (st *lowerState) lowerAttr(node span.NodeId, attr host.Attr) Instruction {
	target, command := st.splitCommand(attr.Name)
	value := attr.ValueSpan.Slice(st.ir.Source)

	if command == "for" {
		return st.lowerIterator(node, attr, target, value)
	}

	if command != "" {
		mode := st.l.commands[command]
		inst := Instruction{
			Node:       node,
			Target:     target,
			Command:    command,
			Span:       attr.ValueSpan,
			TargetSpan: attr.NameSpan,
		}
		switch {
		case mode == catalog.ModeListener:
			inst.Kind = InstListenerBinding
			inst.ExprId = st.parseExpr(attr.ValueSpan.Start, attr.ValueSpan.End, expr.KindListener, value, attr.ValueSpan.File).Id
		case mode == catalog.ModeRef:
			inst.Kind = InstRefBinding
			inst.ExprId = st.parseExpr(attr.ValueSpan.Start, attr.ValueSpan.End, expr.KindProperty, value, attr.ValueSpan.File).Id
		case target == "style" || target == "css":
			inst.Kind = InstStyleBinding
			inst.ExprId = st.parseExpr(attr.ValueSpan.Start, attr.ValueSpan.End, expr.KindProperty, value, attr.ValueSpan.File).Id
		default:
			inst.Kind = InstPropertyBinding
			inst.ExprId = st.parseExpr(attr.ValueSpan.Start, attr.ValueSpan.End, expr.KindProperty, value, attr.ValueSpan.File).Id
		}
		return inst
	}

	if interp := st.lowerInterp(value, attr.ValueSpan.Start, attr.ValueSpan.File); interp != nil {
		return Instruction{
			Kind:       InstAttributeBinding,
			Node:       node,
			Target:     target,
			Interp:     interp,
			Span:       attr.ValueSpan,
			TargetSpan: attr.NameSpan,
		}
	}

	return Instruction{
		Kind:       InstSetAttribute,
		Node:       node,
		Target:     attr.Name,
		Value:      value,
		Span:       attr.ValueSpan,
		TargetSpan: attr.NameSpan,
	}
}

// lowerIterator handles `x.for="item of items; key: id"`. The first
// segment is the iterator declaration; the rest are tail options the link
// phase resolves against the controller spec.
func (st *lowerState) lowerIterator(node span.NodeId, attr host.Attr, target, value string) Instruction {
	inst := Instruction{
		Kind:       InstIteratorBinding,
		Node:       node,
		Target:     target,
		Command:    "for",
		Span:       attr.ValueSpan,
		TargetSpan: attr.NameSpan,
	}
	segments := splitSegments(value)
	if len(segments) == 0 {
		return inst
	}

	head := segments[0]
	inst.ExprId = st.parseExpr(
		attr.ValueSpan.Start+head.start,
		attr.ValueSpan.Start+head.end,
		expr.KindIterator,
		head.text,
		attr.ValueSpan.File,
	).Id

	for _, seg := range segments[1:] {
		name, rest, ok := strings.Cut(seg.text, ":")
		if !ok {
			continue
		}
		exprText := strings.TrimSpace(rest)
		offset := seg.start + len(name) + 1 + (len(rest) - len(strings.TrimLeft(rest, " \t")))
		start := attr.ValueSpan.Start + offset
		entry := st.parseExpr(start, start+len(exprText), expr.KindProperty, exprText, attr.ValueSpan.File)
		inst.TailOptions = append(inst.TailOptions, TailOption{
			Name:   strings.TrimSpace(name),
			ExprId: entry.Id,
			Span:   span.New(attr.ValueSpan.File, start, start+len(exprText)),
		})
	}
	return inst
}

func (st *lowerState) lowerLetAttr(node span.NodeId, attr host.Attr) Instruction {
	target, command := st.splitCommand(attr.Name)
	value := attr.ValueSpan.Slice(st.ir.Source)
	inst := Instruction{
		Kind:       InstHydrateLet,
		Node:       node,
		Target:     target,
		Command:    command,
		Span:       attr.ValueSpan,
		TargetSpan: attr.NameSpan,
	}
	if command != "" {
		inst.ExprId = st.parseExpr(attr.ValueSpan.Start, attr.ValueSpan.End, expr.KindProperty, value, attr.ValueSpan.File).Id
	} else if interp := st.lowerInterp(value, attr.ValueSpan.Start, attr.ValueSpan.File); interp != nil {
		inst.Interp = interp
	} else {
		inst.Value = value
	}
	return inst
}

// lowerMeta folds a reserved element into the template's meta block.
func (st *lowerState) lowerMeta(n *host.Node) {
	meta := &st.ir.Meta
	switch n.Tag {
	case "containerless":
		meta.Containerless = true
	case "use-shadow-dom":
		meta.ShadowMode = "open"
		if mode, ok := n.Attr("mode"); ok && mode.Value != "" {
			meta.ShadowMode = mode.Value
		}
	case "alias":
		if name, ok := n.Attr("name"); ok && name.Value != "" {
			meta.Aliases = append(meta.Aliases, name.Value)
		}
	case "bindable":
		name, ok := n.Attr("name")
		if !ok || name.Value == "" {
			return
		}
		if meta.Bindables == nil {
			meta.Bindables = make(map[string]catalog.Bindable)
		}
		b := catalog.Bindable{Property: name.Value}
		if attrName, ok := n.Attr("attribute"); ok && attrName.Value != "" {
			b.Attribute = catalog.Known(attrName.Value, catalog.OriginSource)
		}
		if mode, ok := n.Attr("mode"); ok && mode.Value != "" {
			b.Mode = catalog.Known(mode.Value, catalog.OriginSource)
		}
		meta.Bindables[name.Value] = b
	}
}

// parseExpr routes through the expression table and reports parse failures
// as diagnostics; the bad entry itself flows on as a placeholder.
func (st *lowerState) parseExpr(start, end int, kind expr.Kind, code string, file span.FileId) *exprtab.Entry {
	entry := st.ir.Exprs.Parse(start, end, kind, code)
	if entry.IsBad() {
		st.l.sink.Report(diag.Diagnostic{
			Code:     "expr-parse",
			Message:  entry.Bad.Message,
			Span:     span.New(file, start, end),
			Severity: diag.SeverityError,
			Stage:    diag.StageLower,
		})
	}
	return entry
}

// splitCommand splits `target.command` when the suffix is a recognized
// command; otherwise the whole name is the target.
func (st *lowerState) splitCommand(name string) (string, string) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name, ""
	}
	suffix := name[idx+1:]
	if suffix == "for" {
		return name[:idx], "for"
	}
	if _, ok := st.l.commands[suffix]; ok {
		return name[:idx], suffix
	}
	return name, ""
}

type segment struct {
	text       string
	start, end int
}

// splitSegments splits on semicolons, trimming whitespace while tracking
// offsets into the original value.
func splitSegments(value string) []segment {
	var out []segment
	begin := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ';' {
			raw := value[begin:i]
			trimmedLeft := strings.TrimLeft(raw, " \t\r\n")
			start := begin + (len(raw) - len(trimmedLeft))
			text := strings.TrimRight(trimmedLeft, " \t\r\n")
			if text != "" {
				out = append(out, segment{text: text, start: start, end: start + len(text)})
			}
			begin = i + 1
		}
	}
	return out
}
