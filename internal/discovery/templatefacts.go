package discovery

import (
	"path"
	"strings"

	"weft/internal/catalog"
	"weft/internal/core/diag"
	"weft/internal/core/errors"
	"weft/internal/core/span"
	"weft/internal/host"
)

// TemplateFact is the evidence one template file contributes: reserved meta
// elements plus the conventional component name derived from the file name.
type TemplateFact struct {
	File          span.FileId
	Name          string
	Bindables     map[string]catalog.Bindable
	Containerless bool
	ShadowMode    string
	HasSlots      bool
	// Imports lists <import from="..."> dependencies for the scope stage.
	Imports []string

	hasContainerless bool
	hasShadow        bool
}

// CollectTemplateFacts tokenizes each template and reads its meta surface.
// A template that fails to tokenize degrades to a name-only fact with a
// diagnostic.
func CollectTemplateFacts(tokenizer host.Tokenizer, templates map[span.FileId]string, sink diag.Sink) []TemplateFact {
	var out []TemplateFact
	for file, source := range templates {
		fact := TemplateFact{File: file, Name: templateName(file)}
		doc, err := tokenizer.Tokenize(file, source)
		if err != nil {
			sink.Report(diag.Diagnostic{
				Code:     string(errors.CodeParseFailure),
				Message:  err.Error(),
				Span:     span.New(file, 0, 0),
				Severity: diag.SeverityError,
				Stage:    diag.StageTemplateFacts,
			})
			out = append(out, fact)
			continue
		}
		readTemplateMeta(doc, &fact)
		out = append(out, fact)
	}
	return out
}

// templateName derives the conventional resource name from the file name:
// src/user-card.html declares user-card.
func templateName(file span.FileId) string {
	base := path.Base(string(file))
	return strings.TrimSuffix(base, path.Ext(base))
}

func readTemplateMeta(doc *host.Document, fact *TemplateFact) {
	doc.Walk(func(n *host.Node, _ []int) bool {
		if n.Kind != host.NodeElement {
			return false
		}
		switch n.Tag {
		case "bindable":
			readBindableMeta(n, fact)
			return false
		case "containerless":
			fact.Containerless = true
			fact.hasContainerless = true
			return false
		case "use-shadow-dom":
			fact.ShadowMode = "open"
			if mode, ok := n.Attr("mode"); ok && mode.Value != "" {
				fact.ShadowMode = mode.Value
			}
			fact.hasShadow = true
			return false
		case "slot":
			fact.HasSlots = true
			return false
		case "import", "require":
			if from, ok := n.Attr("from"); ok && from.Value != "" {
				fact.Imports = append(fact.Imports, from.Value)
			}
			return false
		}
		return true
	})
}

func readBindableMeta(n *host.Node, fact *TemplateFact) {
	name, ok := n.Attr("name")
	if !ok || name.Value == "" {
		return
	}
	if fact.Bindables == nil {
		fact.Bindables = make(map[string]catalog.Bindable)
	}
	b := catalog.Bindable{Property: name.Value}
	if attr, ok := n.Attr("attribute"); ok && attr.Value != "" {
		b.Attribute = catalog.Known(attr.Value, catalog.OriginSource)
	}
	if mode, ok := n.Attr("mode"); ok {
		if parsed, ok := parseMode(mode.Value); ok {
			b.Mode = catalog.Known(parsed, catalog.OriginSource)
		}
	}
	fact.Bindables[name.Value] = b
}

// Candidate renders the template fact as assembler evidence. Template
// evidence carries the lowest rank: it fills holes but never overrides
// source-side analysis.
func (f *TemplateFact) Candidate() Candidate {
	def := &catalog.ResourceDef{
		Kind:     catalog.KindCustomElement,
		Name:     catalog.Known(f.Name, catalog.OriginSource),
		DeclFile: catalog.Known(string(f.File), catalog.OriginSource),
	}
	if f.Bindables != nil {
		def.Bindables = f.Bindables
	}
	if f.hasContainerless {
		def.Containerless = catalog.Known(f.Containerless, catalog.OriginSource)
	}
	if f.hasShadow {
		def.ShadowMode = catalog.Known(f.ShadowMode, catalog.OriginSource)
	}
	if f.HasSlots {
		def.HasSlots = catalog.Known(true, catalog.OriginSource)
	}
	def.Id = span.SymbolIdFor(f.Name, string(catalog.KindCustomElement), string(catalog.OriginSource))
	return Candidate{
		Form: FormTemplateMeta,
		Rank: catalog.RankTemplateMeta,
		Kind: catalog.KindCustomElement,
		Name: f.Name,
		Def:  def,
	}
}
