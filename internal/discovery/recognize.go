package discovery

import (
	"strings"

	"weft/internal/catalog"
	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
)

// DeclarationForm is the closed set of ways a resource can be declared.
// One recognizer exists per form; all of them feed the same Candidate shape
// so the assembler stays form-agnostic.
type DeclarationForm string

const (
	FormDecorator    DeclarationForm = "decorator"
	FormStaticAu     DeclarationForm = "static-au"
	FormDefineCall   DeclarationForm = "define-call"
	FormConvention   DeclarationForm = "convention"
	FormTemplateMeta DeclarationForm = "template-meta"
)

// Candidate is one piece of evidence that a resource exists. Def carries
// only the fields this form actually proved; everything else stays unknown
// for the assembler to fill from other candidates.
type Candidate struct {
	Form DeclarationForm
	Rank catalog.EvidenceRank
	Kind catalog.ResourceKind
	Name string
	Def  *catalog.ResourceDef
	Gaps []Gap
}

var decoratorKinds = map[string]catalog.ResourceKind{
	"customElement":      catalog.KindCustomElement,
	"customAttribute":    catalog.KindCustomAttribute,
	"templateController": catalog.KindTemplateController,
	"valueConverter":     catalog.KindValueConverter,
	"bindingBehavior":    catalog.KindBindingBehavior,
}

var defineCallees = map[string]catalog.ResourceKind{
	"CustomElement.define":   catalog.KindCustomElement,
	"CustomAttribute.define": catalog.KindCustomAttribute,
	"ValueConverter.define":  catalog.KindValueConverter,
	"BindingBehavior.define": catalog.KindBindingBehavior,
}

var conventionSuffixes = []struct {
	suffix string
	kind   catalog.ResourceKind
}{
	{"CustomElement", catalog.KindCustomElement},
	{"CustomAttribute", catalog.KindCustomAttribute},
	{"TemplateController", catalog.KindTemplateController},
	{"ValueConverter", catalog.KindValueConverter},
	{"BindingBehavior", catalog.KindBindingBehavior},
}

// Recognize runs every source-side recognizer over one file's facts.
// Template-meta candidates come from the template-facts stage instead.
func Recognize(file span.FileId, ff *tsfacts.FileFacts, ev *Evaluator) []Candidate {
	var out []Candidate
	for i := range ff.Classes {
		cls := &ff.Classes[i]
		out = append(out, recognizeDecorator(file, cls, ev)...)
		out = append(out, recognizeStaticAu(file, cls, ev)...)
		out = append(out, recognizeConvention(file, cls, ev)...)
	}
	out = append(out, recognizeDefineCalls(file, ff, ev)...)
	return out
}

func recognizeDecorator(file span.FileId, cls *tsfacts.ClassFact, ev *Evaluator) []Candidate {
	var out []Candidate
	for _, dec := range cls.Decorators {
		kind, ok := decoratorKinds[dec.Name]
		if !ok {
			continue
		}
		c := Candidate{Form: FormDecorator, Rank: catalog.RankExplicit, Kind: kind}
		def := newDef(kind, file, cls.Name)

		if len(dec.Args) > 0 {
			arg := &dec.Args[0]
			switch arg.Kind {
			case tsfacts.ValString:
				c.Name = arg.Str
			case tsfacts.ValObject:
				r := ev.Eval(arg)
				c.Gaps = append(c.Gaps, r.Gaps...)
				if cfg, ok := r.Value.(map[string]interface{}); ok {
					c.Name = applyResourceConfig(def, cfg)
				}
			default:
				c.Gaps = append(c.Gaps, Gap{
					Pattern: classifyGap(arg),
					Rank:    catalog.RankExplicit,
					Detail:  arg.Raw,
					Span:    arg.Span,
				})
			}
		}
		if c.Name == "" {
			c.Name = kebabCase(cls.Name)
		}
		def.Name = catalog.Known(c.Name, catalog.OriginSource)
		mergeFieldBindables(def, cls, ev, &c.Gaps)
		finishDef(def, kind, c.Name)
		c.Def = def
		out = append(out, c)
	}
	return out
}

func recognizeStaticAu(file span.FileId, cls *tsfacts.ClassFact, ev *Evaluator) []Candidate {
	au, ok := cls.StaticField("$au")
	if !ok || au.Value == nil {
		return nil
	}
	r := ev.Eval(au.Value)
	cfg, ok := r.Value.(map[string]interface{})
	if !ok {
		return []Candidate{{
			Form: FormStaticAu,
			Rank: catalog.RankExplicit,
			Gaps: append(r.Gaps, Gap{
				Pattern: PatternOther,
				Rank:    catalog.RankExplicit,
				Detail:  "unevaluable $au definition",
				Span:    au.Span,
			}),
		}}
	}

	kind := auType(cfg)
	if kind == "" {
		return nil
	}
	c := Candidate{Form: FormStaticAu, Rank: catalog.RankExplicit, Kind: kind, Gaps: r.Gaps}
	def := newDef(kind, file, cls.Name)
	c.Name = applyResourceConfig(def, cfg)
	if c.Name == "" {
		c.Name = kebabCase(cls.Name)
	}
	def.Name = catalog.Known(c.Name, catalog.OriginSource)
	mergeFieldBindables(def, cls, ev, &c.Gaps)
	finishDef(def, kind, c.Name)
	c.Def = def
	return []Candidate{c}
}

func auType(cfg map[string]interface{}) catalog.ResourceKind {
	typ, _ := cfg["type"].(string)
	switch typ {
	case "custom-element":
		return catalog.KindCustomElement
	case "custom-attribute":
		if b, _ := cfg["isTemplateController"].(bool); b {
			return catalog.KindTemplateController
		}
		return catalog.KindCustomAttribute
	case "template-controller":
		return catalog.KindTemplateController
	case "value-converter":
		return catalog.KindValueConverter
	case "binding-behavior":
		return catalog.KindBindingBehavior
	}
	return ""
}

func recognizeDefineCalls(file span.FileId, ff *tsfacts.FileFacts, ev *Evaluator) []Candidate {
	var out []Candidate
	for i := range ff.Calls {
		call := &ff.Calls[i]
		kind, ok := defineCallees[call.Callee]
		if !ok || len(call.Args) == 0 {
			continue
		}
		c := Candidate{Form: FormDefineCall, Rank: catalog.RankExplicit, Kind: kind}
		className := ""
		if len(call.Args) > 1 && call.Args[1].Kind == tsfacts.ValIdent {
			className = call.Args[1].Name
		}
		def := newDef(kind, file, className)

		arg := &call.Args[0]
		switch arg.Kind {
		case tsfacts.ValString:
			c.Name = arg.Str
		case tsfacts.ValObject:
			r := ev.Eval(arg)
			c.Gaps = append(c.Gaps, r.Gaps...)
			if cfg, ok := r.Value.(map[string]interface{}); ok {
				c.Name = applyResourceConfig(def, cfg)
			}
		default:
			c.Gaps = append(c.Gaps, Gap{
				Pattern: classifyGap(arg),
				Rank:    catalog.RankExplicit,
				Detail:  arg.Raw,
				Span:    arg.Span,
			})
		}
		if c.Name == "" {
			continue
		}
		def.Name = catalog.Known(c.Name, catalog.OriginSource)
		finishDef(def, kind, c.Name)
		c.Def = def
		out = append(out, c)
	}
	return out
}

func recognizeConvention(file span.FileId, cls *tsfacts.ClassFact, ev *Evaluator) []Candidate {
	if !cls.Exported {
		return nil
	}
	for _, conv := range conventionSuffixes {
		prefix, ok := strings.CutSuffix(cls.Name, conv.suffix)
		if !ok || prefix == "" {
			continue
		}
		name := kebabCase(prefix)
		c := Candidate{Form: FormConvention, Rank: catalog.RankConvention, Kind: conv.kind, Name: name}
		def := newDef(conv.kind, file, cls.Name)
		def.Name = catalog.Known(name, catalog.OriginSource)
		mergeFieldBindables(def, cls, ev, &c.Gaps)
		finishDef(def, conv.kind, name)
		c.Def = def
		return []Candidate{c}
	}
	return nil
}

func newDef(kind catalog.ResourceKind, file span.FileId, className string) *catalog.ResourceDef {
	def := &catalog.ResourceDef{
		Kind:     kind,
		DeclFile: catalog.Known(string(file), catalog.OriginSource),
	}
	if className != "" {
		def.DeclName = catalog.Known(className, catalog.OriginSource)
	}
	return def
}

func finishDef(def *catalog.ResourceDef, kind catalog.ResourceKind, name string) {
	def.Id = span.SymbolIdFor(name, string(kind), string(catalog.OriginSource))
	if kind == catalog.KindTemplateController && def.Controller == nil {
		def.Controller = controllerFromBindables(def)
	}
}

// controllerFromBindables derives the controller spec of a recognized
// template controller: the primary bindable (or "value") receives the main
// binding, the rest become props.
func controllerFromBindables(def *catalog.ResourceDef) *catalog.ControllerSpec {
	spec := &catalog.ControllerSpec{PrimaryProp: "value", Scope: catalog.ScopeNone}
	if len(def.Bindables) > 0 {
		spec.Props = def.Bindables
		for _, b := range def.Bindables {
			if primary, _ := b.Primary.OrStub(false); primary {
				spec.PrimaryProp = b.Property
				break
			}
		}
	}
	return spec
}

// applyResourceConfig copies a definition object's recognized keys onto the
// def and returns the declared name, if any.
func applyResourceConfig(def *catalog.ResourceDef, cfg map[string]interface{}) string {
	name, _ := cfg["name"].(string)
	if aliases, ok := toStringList(cfg["aliases"]); ok {
		def.Aliases = catalog.Known(aliases, catalog.OriginSource)
	}
	if v, ok := cfg["containerless"].(bool); ok {
		def.Containerless = catalog.Known(v, catalog.OriginSource)
	}
	if shadow, ok := cfg["shadowOptions"].(map[string]interface{}); ok {
		if mode, ok := shadow["mode"].(string); ok {
			def.ShadowMode = catalog.Known(mode, catalog.OriginSource)
		}
	}
	if bindables, ok := cfg["bindables"]; ok {
		applyBindablesConfig(def, bindables)
	}
	return name
}

// applyBindablesConfig accepts the two authored shapes: a list of names or
// option objects, or a map keyed by property name.
func applyBindablesConfig(def *catalog.ResourceDef, raw interface{}) {
	ensureBindables(def)
	switch v := raw.(type) {
	case []interface{}:
		for _, entry := range v {
			switch b := entry.(type) {
			case string:
				def.Bindables[b] = catalog.Bindable{Property: b}
			case map[string]interface{}:
				prop, _ := b["name"].(string)
				if prop == "" {
					prop, _ = b["property"].(string)
				}
				if prop == "" {
					continue
				}
				def.Bindables[prop] = bindableFromConfig(prop, b)
			}
		}
	case map[string]interface{}:
		for prop, entry := range v {
			cfg, _ := entry.(map[string]interface{})
			def.Bindables[prop] = bindableFromConfig(prop, cfg)
		}
	}
}

func bindableFromConfig(prop string, cfg map[string]interface{}) catalog.Bindable {
	b := catalog.Bindable{Property: prop}
	if cfg == nil {
		return b
	}
	if attr, ok := cfg["attribute"].(string); ok {
		b.Attribute = catalog.Known(attr, catalog.OriginSource)
	}
	if mode, ok := parseMode(cfg["mode"]); ok {
		b.Mode = catalog.Known(mode, catalog.OriginSource)
	}
	if primary, ok := cfg["primary"].(bool); ok {
		b.Primary = catalog.Known(primary, catalog.OriginSource)
	}
	return b
}

// mergeFieldBindables folds @bindable field decorators into the def.
func mergeFieldBindables(def *catalog.ResourceDef, cls *tsfacts.ClassFact, ev *Evaluator, gaps *[]Gap) {
	for i := range cls.Fields {
		field := &cls.Fields[i]
		for _, dec := range field.Decorators {
			if dec.Name != "bindable" {
				continue
			}
			ensureBindables(def)
			b := catalog.Bindable{Property: field.Name}
			if field.TypeName != "" {
				b.TypeName = catalog.Known(field.TypeName, catalog.OriginSource)
			}
			if len(dec.Args) > 0 {
				r := ev.Eval(&dec.Args[0])
				*gaps = append(*gaps, r.Gaps...)
				if cfg, ok := r.Value.(map[string]interface{}); ok {
					withCfg := bindableFromConfig(field.Name, cfg)
					withCfg.TypeName = b.TypeName
					b = withCfg
				}
			}
			def.Bindables[field.Name] = b
		}
	}
}

func ensureBindables(def *catalog.ResourceDef) {
	if def.Bindables == nil {
		def.Bindables = make(map[string]catalog.Bindable)
	}
}

// parseMode accepts both the string spelling and the numeric enum authored
// in older code (1 oneTime, 2 toView, 4 fromView, 6 twoWay).
func parseMode(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		switch v {
		case "oneTime", "one-time":
			return catalog.ModeOneTime, true
		case "toView", "to-view", "one-way":
			return catalog.ModeToView, true
		case "fromView", "from-view":
			return catalog.ModeFromView, true
		case "twoWay", "two-way":
			return catalog.ModeTwoWay, true
		case "default":
			return catalog.ModeDefault, true
		}
	case float64:
		switch int(v) {
		case 1:
			return catalog.ModeOneTime, true
		case 2:
			return catalog.ModeToView, true
		case 4:
			return catalog.ModeFromView, true
		case 6:
			return catalog.ModeTwoWay, true
		}
	}
	return "", false
}

func classifyGap(v *tsfacts.Value) PatternKind {
	switch v.Kind {
	case tsfacts.ValCall:
		return PatternFunctionCall
	case tsfacts.ValIdent:
		return PatternVariableRef
	case tsfacts.ValConditional:
		return PatternConditional
	case tsfacts.ValSpread:
		return PatternSpreadVariable
	case tsfacts.ValMember:
		return PatternPropertyAccess
	}
	return PatternOther
}

func toStringList(raw interface{}) ([]string, bool) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// kebabCase converts PascalCase or camelCase to dash-separated lowercase.
func kebabCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
