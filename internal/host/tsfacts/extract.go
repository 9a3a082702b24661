package tsfacts

import (
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"weft/internal/core/errors"
	"weft/internal/core/span"
)

// Extractor parses TypeScript and JavaScript sources and pulls out the
// declaration facts discovery feeds on.
type Extractor struct {
	ts *sitter.Language
	js *sitter.Language
}

func NewExtractor() *Extractor {
	return &Extractor{
		ts: sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		js: sitter.NewLanguage(tree_sitter_javascript.Language()),
	}
}

// SupportsPath reports whether the file is a source the extractor parses.
// Declaration files carry no runtime registrations and are skipped.
func (e *Extractor) SupportsPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".d.ts") {
		return false
	}
	switch filepath.Ext(base) {
	case ".ts", ".mts", ".cts", ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

func (e *Extractor) language(path string) *sitter.Language {
	switch filepath.Ext(strings.ToLower(path)) {
	case ".js", ".mjs", ".cjs":
		return e.js
	default:
		return e.ts
	}
}

type stmtHandler func(ctx *extractCtx, node *sitter.Node)

// Extract parses one file and returns its facts. The result depends only on
// the content passed in.
func (e *Extractor) Extract(path span.FileId, source []byte) (*FileFacts, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.language(string(path)))

	tree := parser.Parse(source, nil)
	if tree == nil {
		err := errors.New(errors.CodeParseFailure, "source parse failed")
		return nil, errors.AddContext(err, errors.CtxFile, string(path))
	}
	defer tree.Close()

	ctx := &extractCtx{file: path, src: source, facts: &FileFacts{Path: path}}
	handlers := map[string]stmtHandler{
		"class_declaration":          e.extractTopClass,
		"abstract_class_declaration": e.extractTopClass,
		"import_statement":           e.extractImport,
		"export_statement":           e.extractExport,
		"lexical_declaration":        e.extractTopVars,
		"variable_declaration":       e.extractTopVars,
		"expression_statement":       e.extractCallSite,
	}

	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if h, ok := handlers[child.Kind()]; ok {
			h(ctx, child)
		}
	}
	return ctx.facts, nil
}

// extractCtx carries per-file state shared by the statement handlers.
type extractCtx struct {
	file  span.FileId
	src   []byte
	facts *FileFacts
}

func (c *extractCtx) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.src[node.StartByte():node.EndByte()])
}

func (c *extractCtx) spanOf(node *sitter.Node) span.SourceSpan {
	return span.New(c.file, int(node.StartByte()), int(node.EndByte()))
}

func (e *Extractor) extractTopClass(ctx *extractCtx, node *sitter.Node) {
	ctx.facts.Classes = append(ctx.facts.Classes, e.extractClass(ctx, node, nil))
}

func (e *Extractor) extractClass(ctx *extractCtx, node *sitter.Node, outerDecs []DecoratorFact) ClassFact {
	cf := ClassFact{
		Name:       ctx.text(node.ChildByFieldName("name")),
		Decorators: outerDecs,
		Span:       ctx.spanOf(node),
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "decorator":
			cf.Decorators = append(cf.Decorators, e.extractDecorator(ctx, child))
		case "class_heritage":
			cf.Extends = extendsName(ctx, child)
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cf
	}
	// Member decorators sit either inside the member node or as class_body
	// children preceding it, depending on grammar version. Pending ones
	// attach to the next member seen.
	var pending []DecoratorFact
	for i := uint(0); i < body.ChildCount(); i++ {
		member := body.Child(i)
		switch member.Kind() {
		case "decorator":
			pending = append(pending, e.extractDecorator(ctx, member))
		case "method_definition":
			if name := ctx.text(member.ChildByFieldName("name")); name != "" {
				cf.Methods = append(cf.Methods, name)
			}
			pending = nil
		case "public_field_definition", "field_definition":
			cf.Fields = append(cf.Fields, e.extractField(ctx, member, pending))
			pending = nil
		}
	}
	return cf
}

func (e *Extractor) extractField(ctx *extractCtx, node *sitter.Node, pending []DecoratorFact) FieldFact {
	ff := FieldFact{
		Name:       propName(ctx, node.ChildByFieldName("name")),
		Decorators: pending,
		Span:       ctx.spanOf(node),
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "static":
			ff.Static = true
		case "decorator":
			ff.Decorators = append(ff.Decorators, e.extractDecorator(ctx, child))
		}
	}
	if typ := node.ChildByFieldName("type"); typ != nil {
		ff.TypeName = strings.TrimSpace(strings.TrimPrefix(ctx.text(typ), ":"))
	}
	if value := node.ChildByFieldName("value"); value != nil {
		v := e.convertValue(ctx, value)
		ff.Value = &v
	}
	return ff
}

func (e *Extractor) extractDecorator(ctx *extractCtx, node *sitter.Node) DecoratorFact {
	df := DecoratorFact{Span: ctx.spanOf(node)}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "identifier", "member_expression":
			df.Name = dottedPath(ctx, child)
		case "call_expression":
			df.Name = dottedPath(ctx, child.ChildByFieldName("function"))
			df.Called = true
			df.Args = e.convertArgs(ctx, child.ChildByFieldName("arguments"))
		}
	}
	return df
}

func (e *Extractor) extractImport(ctx *extractCtx, node *sitter.Node) {
	imp := ImportFact{
		Module: trimQuoted(ctx.text(node.ChildByFieldName("source"))),
		Span:   ctx.spanOf(node),
	}
	if imp.Module == "" {
		return
	}
	if clause := childOfKind(node, "import_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			switch child.Kind() {
			case "identifier":
				imp.Default = ctx.text(child)
			case "namespace_import":
				imp.Namespace = ctx.text(childOfKind(child, "identifier"))
			case "named_imports":
				for j := uint(0); j < child.NamedChildCount(); j++ {
					spec := child.NamedChild(j)
					if spec.Kind() != "import_specifier" {
						continue
					}
					imp.Named = append(imp.Named, ImportedName{
						Name:  ctx.text(spec.ChildByFieldName("name")),
						Alias: ctx.text(spec.ChildByFieldName("alias")),
					})
				}
			}
		}
	}
	ctx.facts.Imports = append(ctx.facts.Imports, imp)
}

func (e *Extractor) extractExport(ctx *extractCtx, node *sitter.Node) {
	from := trimQuoted(ctx.text(node.ChildByFieldName("source")))
	isDefault := hasToken(node, "default")
	sp := ctx.spanOf(node)

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		switch decl.Kind() {
		case "class_declaration", "abstract_class_declaration":
			cf := e.extractClass(ctx, decl, collectDecorators(e, ctx, node))
			cf.Exported = true
			cf.IsDefault = isDefault
			ctx.facts.Classes = append(ctx.facts.Classes, cf)
			kind := ExportNamed
			if isDefault {
				kind = ExportDefault
			}
			ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{Kind: kind, Name: cf.Name, Span: sp})
		case "lexical_declaration", "variable_declaration":
			for _, v := range e.extractVars(ctx, decl, true) {
				ctx.facts.Variables = append(ctx.facts.Variables, v)
				ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{Kind: ExportNamed, Name: v.Name, Span: sp})
			}
		case "function_declaration":
			name := ctx.text(decl.ChildByFieldName("name"))
			kind := ExportNamed
			if isDefault {
				kind = ExportDefault
			}
			ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{Kind: kind, Name: name, Span: sp})
		}
		return
	}

	if isDefault {
		// export default <expr>
		name := ""
		if value := node.ChildByFieldName("value"); value != nil && value.Kind() == "identifier" {
			name = ctx.text(value)
		}
		ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{Kind: ExportDefault, Name: name, Span: sp})
		return
	}

	if clause := childOfKind(node, "export_clause"); clause != nil {
		kind := ExportNamed
		if from != "" {
			kind = ExportReexport
		}
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			spec := clause.NamedChild(i)
			if spec.Kind() != "export_specifier" {
				continue
			}
			ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{
				Kind:  kind,
				Name:  ctx.text(spec.ChildByFieldName("name")),
				Alias: ctx.text(spec.ChildByFieldName("alias")),
				From:  from,
				Span:  sp,
			})
		}
		return
	}

	if from != "" {
		// export * from 'm', optionally  export * as ns from 'm'
		alias := ""
		if ns := childOfKind(node, "namespace_export"); ns != nil {
			alias = ctx.text(childOfKind(ns, "identifier"))
		}
		ctx.facts.Exports = append(ctx.facts.Exports, ExportFact{Kind: ExportStar, Alias: alias, From: from, Span: sp})
	}
}

func (e *Extractor) extractTopVars(ctx *extractCtx, node *sitter.Node) {
	ctx.facts.Variables = append(ctx.facts.Variables, e.extractVars(ctx, node, false)...)
}

func (e *Extractor) extractVars(ctx *extractCtx, node *sitter.Node, exported bool) []VariableFact {
	var out []VariableFact
	for i := uint(0); i < node.NamedChildCount(); i++ {
		decl := node.NamedChild(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		if name == nil || name.Kind() != "identifier" {
			// Destructuring patterns carry no single evaluable binding.
			continue
		}
		vf := VariableFact{Name: ctx.text(name), Exported: exported, Span: ctx.spanOf(decl)}
		if value := decl.ChildByFieldName("value"); value != nil {
			v := e.convertValue(ctx, value)
			vf.Value = &v
		}
		out = append(out, vf)
	}
	return out
}

func (e *Extractor) extractCallSite(ctx *extractCtx, node *sitter.Node) {
	expr := node.Child(0)
	if expr == nil {
		return
	}
	if expr.Kind() == "await_expression" {
		expr = expr.NamedChild(0)
	}
	e.recordCalls(ctx, expr)
}

// recordCalls records a call expression and every link of a fluent chain
// hanging off it, in source order. Chained links get a leading-dot callee
// (".app") since their receiver is the previous call's result.
func (e *Extractor) recordCalls(ctx *extractCtx, expr *sitter.Node) {
	if expr == nil || expr.Kind() != "call_expression" {
		return
	}
	fn := expr.ChildByFieldName("function")
	callee := dottedPath(ctx, fn)
	if callee == "" && fn != nil && fn.Kind() == "member_expression" {
		if prop := ctx.text(fn.ChildByFieldName("property")); prop != "" {
			callee = "." + prop
		}
		e.recordCalls(ctx, fn.ChildByFieldName("object"))
	}
	if callee == "" {
		return
	}
	ctx.facts.Calls = append(ctx.facts.Calls, CallFact{
		Callee: callee,
		Args:   e.convertArgs(ctx, expr.ChildByFieldName("arguments")),
		Span:   ctx.spanOf(expr),
	})
}

func (e *Extractor) convertArgs(ctx *extractCtx, args *sitter.Node) []Value {
	if args == nil {
		return nil
	}
	var out []Value
	for i := uint(0); i < args.NamedChildCount(); i++ {
		out = append(out, e.convertValue(ctx, args.NamedChild(i)))
	}
	return out
}

// convertValue turns an initializer expression into the shallow Value tree
// partial evaluation consumes. Anything it cannot classify keeps its raw
// text under ValUnknown.
func (e *Extractor) convertValue(ctx *extractCtx, node *sitter.Node) Value {
	if node == nil {
		return Value{Kind: ValUnknown}
	}
	v := Value{Span: ctx.spanOf(node), Raw: ctx.text(node)}
	switch node.Kind() {
	case "string":
		v.Kind = ValString
		v.Str = trimQuoted(v.Raw)
	case "number":
		v.Kind = ValNumber
		v.Num, _ = strconv.ParseFloat(v.Raw, 64)
	case "true":
		v.Kind = ValBool
		v.Bool = true
	case "false":
		v.Kind = ValBool
	case "null", "undefined":
		v.Kind = ValNull
	case "template_string":
		v.Kind = ValTemplate
		if !strings.Contains(v.Raw, "${") {
			v.Kind = ValString
			v.Str = strings.Trim(v.Raw, "`")
		}
	case "array":
		v.Kind = ValArray
		for i := uint(0); i < node.NamedChildCount(); i++ {
			v.Elems = append(v.Elems, e.convertValue(ctx, node.NamedChild(i)))
		}
	case "object":
		v.Kind = ValObject
		v.Props = e.convertProps(ctx, node)
	case "identifier":
		v.Kind = ValIdent
		v.Name = v.Raw
	case "member_expression":
		v.Kind = ValMember
		v.Name = dottedPath(ctx, node)
	case "call_expression", "new_expression":
		v.Kind = ValCall
		v.Name = dottedPath(ctx, node.ChildByFieldName("function"))
		if node.Kind() == "new_expression" {
			v.Name = dottedPath(ctx, node.ChildByFieldName("constructor"))
		}
		v.Elems = e.convertArgs(ctx, node.ChildByFieldName("arguments"))
	case "ternary_expression":
		v.Kind = ValConditional
		v.Elems = []Value{
			e.convertValue(ctx, node.ChildByFieldName("condition")),
			e.convertValue(ctx, node.ChildByFieldName("consequence")),
			e.convertValue(ctx, node.ChildByFieldName("alternative")),
		}
	case "spread_element":
		v.Kind = ValSpread
		v.Elems = []Value{e.convertValue(ctx, node.NamedChild(0))}
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		return e.convertValue(ctx, node.NamedChild(0))
	case "unary_expression":
		operand := node.ChildByFieldName("argument")
		if operand != nil && operand.Kind() == "number" && strings.HasPrefix(v.Raw, "-") {
			v.Kind = ValNumber
			num, _ := strconv.ParseFloat(ctx.text(operand), 64)
			v.Num = -num
			return v
		}
		v.Kind = ValUnknown
	default:
		v.Kind = ValUnknown
	}
	return v
}

func (e *Extractor) convertProps(ctx *extractCtx, node *sitter.Node) []Prop {
	var out []Prop
	for i := uint(0); i < node.NamedChildCount(); i++ {
		entry := node.NamedChild(i)
		switch entry.Kind() {
		case "pair":
			key := entry.ChildByFieldName("key")
			out = append(out, Prop{
				Key:      propName(ctx, key),
				Computed: key != nil && key.Kind() == "computed_property_name",
				Val:      e.convertValue(ctx, entry.ChildByFieldName("value")),
			})
		case "shorthand_property_identifier":
			name := ctx.text(entry)
			out = append(out, Prop{
				Key: name,
				Val: Value{Kind: ValIdent, Name: name, Raw: name, Span: ctx.spanOf(entry)},
			})
		case "spread_element":
			out = append(out, Prop{
				Spread: true,
				Val:    e.convertValue(ctx, entry.NamedChild(0)),
			})
		case "method_definition":
			if name := propName(ctx, entry.ChildByFieldName("name")); name != "" {
				out = append(out, Prop{
					Key: name,
					Val: Value{Kind: ValUnknown, Raw: ctx.text(entry), Span: ctx.spanOf(entry)},
				})
			}
		}
	}
	return out
}

// collectDecorators gathers decorators written before the export keyword,
// which the grammar attaches to the export statement instead of the class.
func collectDecorators(e *Extractor, ctx *extractCtx, node *sitter.Node) []DecoratorFact {
	var out []DecoratorFact
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child.Kind() == "decorator" {
			out = append(out, e.extractDecorator(ctx, child))
		}
	}
	return out
}

func extendsName(ctx *extractCtx, heritage *sitter.Node) string {
	clause := childOfKind(heritage, "extends_clause")
	if clause == nil {
		// The JS grammar puts the expression straight under class_heritage.
		if n := heritage.NamedChild(0); n != nil {
			return dottedPath(ctx, n)
		}
		return ""
	}
	if value := clause.ChildByFieldName("value"); value != nil {
		return dottedPath(ctx, value)
	}
	if n := clause.NamedChild(0); n != nil {
		return dottedPath(ctx, n)
	}
	return ""
}

// dottedPath renders an identifier or member chain as written. Chains that
// pass through calls or subscripts have no stable path and yield "".
func dottedPath(ctx *extractCtx, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier", "property_identifier", "type_identifier":
		return ctx.text(node)
	case "member_expression":
		base := dottedPath(ctx, node.ChildByFieldName("object"))
		prop := ctx.text(node.ChildByFieldName("property"))
		if base == "" || prop == "" {
			return ""
		}
		return base + "." + prop
	}
	return ""
}

func propName(ctx *extractCtx, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "string":
		return trimQuoted(ctx.text(node))
	case "computed_property_name":
		return ctx.text(node)
	default:
		return ctx.text(node)
	}
}

func childOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

func hasToken(node *sitter.Node, token string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == token {
			return true
		}
	}
	return false
}

func trimQuoted(value string) string {
	value = strings.TrimSpace(value)
	return strings.Trim(value, "\"'`")
}
