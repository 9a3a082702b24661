// Package htmltok adapts tree-sitter-html to the host markup model.
//
// Line endings are normalized to LF before parsing, but every span handed
// out refers to the original un-normalized text: the removed CR positions
// are tracked and folded back into each offset. Consumers slice the
// original source through those spans and never look at normalized text.
package htmltok

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"

	"weft/internal/core/errors"
	"weft/internal/core/span"
	"weft/internal/host"
)

type Tokenizer struct {
	lang *sitter.Language
}

func New() *Tokenizer {
	return &Tokenizer{lang: sitter.NewLanguage(tree_sitter_html.Language())}
}

func (t *Tokenizer) Tokenize(file span.FileId, source string) (*host.Document, error) {
	norm, removed := normalizeNewlines(source)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(t.lang)

	tree := parser.Parse([]byte(norm), nil)
	if tree == nil {
		err := errors.New(errors.CodeParseFailure, "html parse failed")
		return nil, errors.AddContext(err, errors.CtxFile, string(file))
	}
	defer tree.Close()

	b := &builder{file: file, source: norm, removed: removed}
	doc := &host.Document{File: file, Source: source}
	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		if n := b.convert(root.Child(i)); n != nil {
			doc.Roots = append(doc.Roots, n)
		}
	}
	return doc, nil
}

// normalizeNewlines rewrites CRLF to LF and records, for each removed CR,
// the normalized offset of the LF that replaced the pair.
func normalizeNewlines(source string) (string, []int) {
	if !strings.Contains(source, "\r\n") {
		return source, nil
	}
	var out strings.Builder
	out.Grow(len(source))
	var removed []int
	for i := 0; i < len(source); i++ {
		if source[i] == '\r' && i+1 < len(source) && source[i+1] == '\n' {
			removed = append(removed, out.Len())
			out.WriteByte('\n')
			i++
			continue
		}
		out.WriteByte(source[i])
	}
	return out.String(), removed
}

type builder struct {
	file    span.FileId
	source  string
	removed []int
}

// orig maps a normalized offset back to the original text. Each CR removed
// strictly before the offset shifts it right by one byte.
func (b *builder) orig(n int) int {
	return n + sort.SearchInts(b.removed, n)
}

func (b *builder) spanOf(node *sitter.Node) span.SourceSpan {
	return span.New(b.file, b.orig(int(node.StartByte())), b.orig(int(node.EndByte())))
}

func (b *builder) text(node *sitter.Node) string {
	return b.source[node.StartByte():node.EndByte()]
}

func (b *builder) convert(node *sitter.Node) *host.Node {
	switch node.Kind() {
	case "element", "script_element", "style_element":
		return b.convertElement(node)
	case "text", "entity":
		return &host.Node{Kind: host.NodeText, Text: b.text(node), Span: b.spanOf(node)}
	case "raw_text":
		return &host.Node{Kind: host.NodeText, Text: b.text(node), Span: b.spanOf(node)}
	case "comment":
		return &host.Node{Kind: host.NodeComment, Text: commentBody(b.text(node)), Span: b.spanOf(node)}
	default:
		// doctype, erroneous_end_tag and friends carry nothing the
		// pipeline consumes.
		return nil
	}
}

func (b *builder) convertElement(node *sitter.Node) *host.Node {
	el := &host.Node{Kind: host.NodeElement, Span: b.spanOf(node)}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "start_tag", "self_closing_tag":
			b.fillTag(el, child)
		case "end_tag":
		default:
			if c := b.convert(child); c != nil {
				el.Children = append(el.Children, c)
			}
		}
	}
	return el
}

func (b *builder) fillTag(el *host.Node, tag *sitter.Node) {
	for i := uint(0); i < tag.ChildCount(); i++ {
		child := tag.Child(i)
		switch child.Kind() {
		case "tag_name":
			el.Tag = strings.ToLower(b.text(child))
		case "attribute":
			el.Attrs = append(el.Attrs, b.convertAttr(child))
		}
	}
}

func (b *builder) convertAttr(node *sitter.Node) host.Attr {
	var attr host.Attr
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "attribute_name":
			attr.Name = b.text(child)
			attr.NameSpan = b.spanOf(child)
		case "attribute_value":
			attr.Value = b.text(child)
			attr.ValueSpan = b.spanOf(child)
			attr.HasValue = true
		case "quoted_attribute_value":
			attr.HasValue = true
			if inner := childOfKind(child, "attribute_value"); inner != nil {
				attr.Value = b.text(inner)
				attr.ValueSpan = b.spanOf(inner)
			} else {
				// Empty quoted value: a zero-length span between the quotes.
				at := b.orig(int(child.StartByte()) + 1)
				attr.ValueSpan = span.New(b.file, at, at)
			}
		}
	}
	return attr
}

func childOfKind(node *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

func commentBody(text string) string {
	text = strings.TrimPrefix(text, "<!--")
	text = strings.TrimSuffix(text, "-->")
	return text
}
