package discovery

import (
	"sort"

	"weft/internal/catalog"
)

// Assemble converges all candidates for the same (kind, name) into one
// ResourceDef. Evidence merges field-wise: per field the highest-ranked
// known value wins, lower-ranked values fill remaining holes, and every
// contested field gets a convergence note naming the rank that won.
func Assemble(candidates []Candidate) ([]*catalog.ResourceDef, []Gap) {
	var gaps []Gap
	groups := make(map[resourceKey][]Candidate)
	var order []resourceKey

	for _, c := range candidates {
		gaps = append(gaps, c.Gaps...)
		if c.Name == "" || c.Def == nil {
			continue
		}
		key := resourceKey{kind: c.Kind, name: c.Name}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	out := make([]*catalog.ResourceDef, 0, len(order))
	for _, key := range order {
		out = append(out, converge(groups[key]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name.Value < out[j].Name.Value
	})
	return out, gaps
}

type resourceKey struct {
	kind catalog.ResourceKind
	name string
}

func converge(group []Candidate) *catalog.ResourceDef {
	sort.SliceStable(group, func(i, j int) bool { return group[i].Rank > group[j].Rank })

	merged := &catalog.ResourceDef{
		Id:   group[0].Def.Id,
		Kind: group[0].Kind,
		Name: catalog.Known(group[0].Name, catalog.OriginSource),
	}
	m := &merger{def: merged}
	for _, c := range group {
		m.fold(c)
	}
	if merged.Kind == catalog.KindTemplateController && merged.Controller == nil {
		merged.Controller = controllerFromBindables(merged)
	}
	merged.Convergence = m.notes()
	return merged
}

// merger tracks which rank supplied each field so convergence notes can say
// what won and what was rejected.
type merger struct {
	def    *catalog.ResourceDef
	fields map[string]*fieldRecord
	order  []string
}

type fieldRecord struct {
	chosen   catalog.EvidenceRank
	rejected []catalog.EvidenceRank
}

func (m *merger) fold(c Candidate) {
	src := c.Def
	foldField(m, "aliases", c.Rank, &m.def.Aliases, src.Aliases)
	foldField(m, "declFile", c.Rank, &m.def.DeclFile, src.DeclFile)
	foldField(m, "declName", c.Rank, &m.def.DeclName, src.DeclName)
	foldField(m, "containerless", c.Rank, &m.def.Containerless, src.Containerless)
	foldField(m, "shadowMode", c.Rank, &m.def.ShadowMode, src.ShadowMode)
	foldField(m, "hasSlots", c.Rank, &m.def.HasSlots, src.HasSlots)

	for prop, b := range src.Bindables {
		m.foldBindable(c.Rank, prop, b)
	}
	if src.Controller != nil && m.def.Controller == nil {
		m.def.Controller = src.Controller
	}
}

func foldField[T any](m *merger, name string, rank catalog.EvidenceRank, dst *catalog.Sourced[T], src catalog.Sourced[T]) {
	if !src.IsKnown() {
		return
	}
	rec := m.record(name)
	if !dst.IsKnown() {
		*dst = src
		rec.chosen = rank
		return
	}
	rec.rejected = append(rec.rejected, rank)
}

func (m *merger) foldBindable(rank catalog.EvidenceRank, prop string, b catalog.Bindable) {
	ensureBindables(m.def)
	rec := m.record("bindable:" + prop)
	existing, ok := m.def.Bindables[prop]
	if !ok {
		m.def.Bindables[prop] = b
		rec.chosen = rank
		return
	}
	// The higher-ranked entry stays; a lower-ranked one may still fill
	// per-option holes (e.g. the template declared a mode the decorator
	// form left unknown).
	changed := false
	if !existing.Attribute.IsKnown() && b.Attribute.IsKnown() {
		existing.Attribute = b.Attribute
		changed = true
	}
	if !existing.Mode.IsKnown() && b.Mode.IsKnown() {
		existing.Mode = b.Mode
		changed = true
	}
	if !existing.Primary.IsKnown() && b.Primary.IsKnown() {
		existing.Primary = b.Primary
		changed = true
	}
	if !existing.TypeName.IsKnown() && b.TypeName.IsKnown() {
		existing.TypeName = b.TypeName
		changed = true
	}
	if changed {
		m.def.Bindables[prop] = existing
	}
	rec.rejected = append(rec.rejected, rank)
}

func (m *merger) record(name string) *fieldRecord {
	if m.fields == nil {
		m.fields = make(map[string]*fieldRecord)
	}
	rec, ok := m.fields[name]
	if !ok {
		rec = &fieldRecord{}
		m.fields[name] = rec
		m.order = append(m.order, name)
	}
	return rec
}

// notes emits one convergence note per field that more than one candidate
// offered evidence for.
func (m *merger) notes() []catalog.ConvergenceNote {
	var out []catalog.ConvergenceNote
	for _, name := range m.order {
		rec := m.fields[name]
		if len(rec.rejected) == 0 {
			continue
		}
		out = append(out, catalog.ConvergenceNote{
			Field:    name,
			Chosen:   rec.chosen,
			Rejected: rec.rejected,
		})
	}
	return out
}
