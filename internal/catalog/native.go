package catalog

// NativeSchema answers whether a native element carries a given DOM
// property and which native props default to two-way binding. Both tables
// are data: HTML's own semantics, swappable by the embedder, never
// hardcoded into the link phase.
type NativeSchema struct {
	// globalProps exist on every element.
	globalProps map[string]string
	// tagProps lists per-tag properties with their type names.
	tagProps map[string]map[string]string
	// knownTags marks recognized native elements even when they add no
	// props of their own.
	knownTags map[string]bool
	// twoWayDefaults: tag -> props that default to two-way.
	twoWayDefaults map[string]map[string]bool
}

func NewNativeSchema(twoWayDefaults map[string][]string) *NativeSchema {
	s := DefaultNativeSchema()
	if twoWayDefaults != nil {
		s.twoWayDefaults = make(map[string]map[string]bool, len(twoWayDefaults))
		for tag, props := range twoWayDefaults {
			set := make(map[string]bool, len(props))
			for _, p := range props {
				set[p] = true
			}
			s.twoWayDefaults[tag] = set
		}
	}
	return s
}

// KnownTag reports whether tag is a recognized native element.
func (s *NativeSchema) KnownTag(tag string) bool {
	if s.knownTags[tag] {
		return true
	}
	_, ok := s.tagProps[tag]
	return ok
}

// Prop returns the property's type name when the tag carries it.
func (s *NativeSchema) Prop(tag, prop string) (string, bool) {
	if props, ok := s.tagProps[tag]; ok {
		if t, ok := props[prop]; ok {
			return t, true
		}
	}
	t, ok := s.globalProps[prop]
	return t, ok
}

// TwoWayDefault reports whether tag.prop defaults to two-way binding.
func (s *NativeSchema) TwoWayDefault(tag, prop string) bool {
	return s.twoWayDefaults[tag][prop]
}

// DefaultNativeSchema carries the subset of HTML's property surface the
// engine recognizes out of the box.
func DefaultNativeSchema() *NativeSchema {
	return &NativeSchema{
		globalProps: map[string]string{
			"id":          "string",
			"title":       "string",
			"className":   "string",
			"class":       "string",
			"style":       "string",
			"textContent": "string",
			"innerHTML":   "string",
			"hidden":      "boolean",
			"tabIndex":    "number",
			"slot":        "string",
		},
		tagProps: map[string]map[string]string{
			"input": {
				"value": "string", "checked": "boolean", "type": "string",
				"disabled": "boolean", "placeholder": "string", "files": "FileList",
				"min": "string", "max": "string", "step": "string",
			},
			"textarea": {"value": "string", "disabled": "boolean", "placeholder": "string", "rows": "number", "cols": "number"},
			"select":   {"value": "string", "disabled": "boolean", "multiple": "boolean"},
			"option":   {"value": "string", "selected": "boolean", "label": "string"},
			"button":   {"disabled": "boolean", "type": "string"},
			"a":        {"href": "string", "target": "string", "rel": "string"},
			"img":      {"src": "string", "alt": "string", "width": "number", "height": "number"},
			"form":     {"action": "string", "method": "string", "noValidate": "boolean"},
			"details":  {"open": "boolean"},
			"label":    {"htmlFor": "string"},
			"video":    {"src": "string", "muted": "boolean", "autoplay": "boolean", "controls": "boolean"},
			"audio":    {"src": "string", "muted": "boolean", "autoplay": "boolean", "controls": "boolean"},
		},
		knownTags: map[string]bool{
			"div": true, "span": true, "p": true, "ul": true, "ol": true, "li": true,
			"table": true, "thead": true, "tbody": true, "tr": true, "td": true, "th": true,
			"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
			"header": true, "footer": true, "main": true, "nav": true, "section": true,
			"article": true, "aside": true, "template": true, "slot": true, "br": true,
			"hr": true, "pre": true, "code": true, "em": true, "strong": true, "small": true,
		},
		twoWayDefaults: map[string]map[string]bool{
			"input":    {"value": true, "checked": true, "files": true},
			"textarea": {"value": true},
			"select":   {"value": true},
			"details":  {"open": true},
		},
	}
}
