package discovery

import (
	"log/slog"
	"time"

	"weft/internal/catalog"
	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/host"
	"weft/internal/host/tsfacts"
	"weft/internal/shared/observability"
)

// Discoverer runs the full stage pipeline over a project's files.
type Discoverer struct {
	cache     *FactsCache
	tokenizer host.Tokenizer
	defines   map[string]interface{}
	native    *catalog.NativeSchema
	tracer    *diag.Tracer
	logger    *slog.Logger
}

// Options configures a Discoverer. Zero values fall back to defaults.
type Options struct {
	Tokenizer host.Tokenizer
	// Defines are build-time constants substituted during evaluation, so
	// conditional registration guards resolve deterministically.
	Defines map[string]interface{}
	Native  *catalog.NativeSchema
	Tracer  *diag.Tracer
	Logger  *slog.Logger
}

func New(opts Options) *Discoverer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		cache:     NewFactsCache(tsfacts.NewExtractor()),
		tokenizer: opts.Tokenizer,
		defines:   opts.Defines,
		native:    opts.Native,
		tracer:    opts.Tracer,
		logger:    logger,
	}
}

// Cache exposes the facts cache for persistence layers that seed it on
// cold start and write it back after runs.
func (d *Discoverer) Cache() *FactsCache {
	return d.cache
}

// Input is one project file set: source files by raw content, template
// files by text.
type Input struct {
	Sources   map[span.FileId][]byte
	Templates map[span.FileId]string
}

// Run executes the stages in dependency order. Extraction reuses cached
// facts per unchanged file; every cross-file stage re-runs whole. The run
// never fails on bad input files: they degrade to gaps and diagnostics.
func (d *Discoverer) Run(in Input, sink diag.Sink) *Result {
	if sink == nil {
		sink = diag.Discard{}
	}

	stage := d.stageTimer()

	facts, stats := d.cache.Refresh(in.Sources, sink)
	stage("extract")

	exports := ResolveExports(facts)
	stage("exports")

	var candidates []Candidate
	var regs []Registration
	for file, ff := range facts {
		ev := &Evaluator{Defines: d.defines, Env: moduleEnv(ff)}
		candidates = append(candidates, Recognize(file, ff, ev)...)
		regs = append(regs, ResolveRegistrations(file, ff, ev)...)
	}
	stage("evaluate")
	stage("recognize")

	var templateFacts []TemplateFact
	if d.tokenizer != nil {
		templateFacts = CollectTemplateFacts(d.tokenizer, in.Templates, sink)
		for i := range templateFacts {
			candidates = append(candidates, templateFacts[i].Candidate())
		}
	}
	stage("template-facts")

	resources, gaps := Assemble(candidates)
	stage("assemble")

	for _, reg := range regs {
		if reg.Gap != nil {
			gaps = append(gaps, *reg.Gap)
		}
	}
	stage("register")

	scope := BuildScope(resources, regs, templateFacts)
	stage("scope")

	confidence := computeConfidence(gaps, exports)
	cat := catalog.NewCatalog(d.native)
	for _, r := range resources {
		cat.Add(r)
	}
	cat.SetConfidence(confidence)

	snapshot := BuildSnapshot(resources, gaps, confidence)
	stage("snapshot")

	d.tracer.Tracef(diag.ChannelDiscovery,
		"discovery run: %d resources, %d gaps, confidence=%s, snapshot=%s",
		len(resources), len(gaps), confidence, snapshot.Hash)
	d.logger.Debug("discovery complete",
		"resources", len(resources),
		"gaps", len(gaps),
		"confidence", confidence.String(),
		"reused", len(stats.Reused),
		"extracted", len(stats.Extracted))

	return &Result{
		Catalog:       cat,
		Resources:     resources,
		Registrations: regs,
		Scope:         scope,
		Snapshot:      snapshot,
		Gaps:          gaps,
		Stats:         stats,
	}
}

func (d *Discoverer) stageTimer() func(name string) {
	last := time.Now()
	return func(name string) {
		now := time.Now()
		observability.DiscoveryStageDuration.WithLabelValues(name).Observe(now.Sub(last).Seconds())
		last = now
	}
}

// moduleEnv exposes a file's own module-level variables to its evaluator.
func moduleEnv(ff *tsfacts.FileFacts) map[string]*tsfacts.Value {
	env := make(map[string]*tsfacts.Value, len(ff.Variables))
	for i := range ff.Variables {
		if ff.Variables[i].Value != nil {
			env[ff.Variables[i].Name] = ff.Variables[i].Value
		}
	}
	return env
}

// computeConfidence is a total order over what went wrong: unresolved
// imports demote furthest, then high-ranked gaps. Gap-free runs stay high.
func computeConfidence(gaps []Gap, exports *ExportMap) catalog.Confidence {
	confidence := catalog.ConfidenceHigh
	if len(exports.UnresolvedImports()) > 0 {
		confidence = confidence.Demote(catalog.ConfidenceConservative)
	}
	for _, g := range gaps {
		if g.Rank >= catalog.RankConvention {
			confidence = confidence.Demote(catalog.ConfidencePartial)
			break
		}
	}
	return confidence
}
