// Package program is the long-lived session layer: it owns open templates,
// the claim graph that decides what recompiles, and the content-hash
// artifact cache that lets identical inputs skip the pipeline entirely.
package program

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"weft/internal/claim"
	"weft/internal/core/diag"
	"weft/internal/core/errors"
	"weft/internal/core/span"
	"weft/internal/pipeline"
	"weft/internal/shared/observability"
)

const (
	kindTemplateSource  = "template-source"
	kindTemplateCompile = "template-compile"
)

// Compiled bundles one compilation with the diagnostics it produced, so
// repeated reads replay the same diagnostics without recompiling.
type Compiled struct {
	Hash   string
	Result *pipeline.Result
	Diags  []diag.Diagnostic
}

type templateState struct {
	file   span.FileId
	vmType string
	hash   string
	closed bool

	sourceNode  claim.NodeId
	compileNode claim.NodeId
}

// Program is safe for concurrent use; every operation serializes on one
// mutex because the claim graph is single-stack by contract.
type Program struct {
	mu sync.Mutex

	// SessionId distinguishes program instances in logs and telemetry.
	SessionId string

	graph     *claim.Graph
	compiler  *pipeline.Compiler
	templates map[span.FileId]*templateState
	// artifacts caches compilations by template content hash. A re-opened
	// or reverted template with a previously seen hash skips the pipeline.
	artifacts map[string]*Compiled

	// compileCtx carries the caller's context into the graph callback for
	// the duration of one pull; the mutex makes the handoff safe.
	compileCtx context.Context

	stats  CacheStats
	tracer *diag.Tracer
	logger *slog.Logger
}

type Options struct {
	Compiler       *pipeline.Compiler
	ConvergeBudget int
	Tracer         *diag.Tracer
	Logger         *slog.Logger
}

func New(opts Options) *Program {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Program{
		SessionId: uuid.NewString(),
		graph:     claim.NewGraph(opts.ConvergeBudget, opts.Tracer),
		compiler:  opts.Compiler,
		templates: make(map[span.FileId]*templateState),
		artifacts: make(map[string]*Compiled),
		stats:     newCacheStats(),
		tracer:    opts.Tracer,
		logger:    logger,
	}
	p.graph.RegisterCallback(kindTemplateCompile, p.compileCallback)
	return p
}

// UpsertTemplate opens or updates a template. Setting identical content is
// a no-op at the graph level: the source node's green is the content hash.
func (p *Program) UpsertTemplate(file span.FileId, source, vmType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.templates[file]
	if ok && st.closed {
		return errors.Newf(errors.CodeValidationError, "template %s is closed", file)
	}
	if !ok {
		st = &templateState{
			file:        file,
			sourceNode:  p.graph.CreateNode(kindTemplateSource, string(file)),
			compileNode: p.graph.CreateNode(kindTemplateCompile, string(file)),
		}
		p.templates[file] = st
	}
	st.vmType = vmType
	st.hash = span.ContentHash([]byte(source))
	return p.graph.SetInputValue(st.sourceNode, st.hash, source)
}

// GetOverlay returns the overlay artifact for an open template, compiling
// only when the claim graph says the cached compilation is out of date.
func (p *Program) GetOverlay(ctx context.Context, file span.FileId) (*pipeline.Overlay, []diag.Diagnostic, error) {
	c, err := p.getCompiled(ctx, file, "overlay")
	if err != nil {
		return nil, nil, err
	}
	return c.Result.Overlay, c.Diags, nil
}

// GetSsr returns the server-render artifact for an open template.
func (p *Program) GetSsr(ctx context.Context, file span.FileId) (string, []diag.Diagnostic, error) {
	c, err := p.getCompiled(ctx, file, "ssr")
	if err != nil {
		return "", nil, err
	}
	return c.Result.Ssr, c.Diags, nil
}

// GetMapping returns the overlay position mapping for an open template.
func (p *Program) GetMapping(ctx context.Context, file span.FileId) (*pipeline.Mapping, error) {
	c, err := p.getCompiled(ctx, file, "overlay")
	if err != nil {
		return nil, err
	}
	return c.Result.Overlay.Mapping, nil
}

func (p *Program) getCompiled(ctx context.Context, file span.FileId, artifact string) (*Compiled, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.templates[file]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "template %s is not open", file)
	}
	if st.closed {
		return nil, errors.Newf(errors.CodeValidationError, "template %s is closed", file)
	}

	node, _ := p.graph.GetNode(st.compileNode)
	wasFresh := node.Freshness == claim.Fresh

	p.compileCtx = ctx
	res, err := p.graph.Pull(st.compileNode)
	p.compileCtx = nil
	if err != nil {
		return nil, err
	}
	c := res.Value.(*Compiled)

	outcome := "miss"
	if wasFresh {
		outcome = "hit"
		p.stats.record("compile", true)
	}
	observability.ProgramCacheTotal.WithLabelValues(artifact, outcome).Inc()
	return c, nil
}

// compileCallback is the claim-graph evaluation function for template
// compilations. The green is the source content hash, so an unchanged
// template cuts off dependents; the artifact cache makes a reverted
// template equally cheap.
func (p *Program) compileCallback(ectx *claim.EvaluationContext) (interface{}, interface{}, error) {
	node, _ := p.graph.GetNode(ectx.Self())
	st := p.templates[span.FileId(node.Key)]

	src, err := ectx.Pull(st.sourceNode)
	if err != nil {
		return nil, nil, err
	}
	hash := src.Green.(string)
	source := src.Value.(string)

	if cached, ok := p.artifacts[hash]; ok {
		p.stats.record("compile", true)
		observability.ProgramStageReuseTotal.WithLabelValues("compile", "reused").Inc()
		return hash, cached, nil
	}

	ctx := p.compileCtx
	if ctx == nil {
		ctx = context.Background()
	}
	sink := diag.NewCollector()
	result, err := p.compiler.Compile(ctx, st.file, source, st.vmType, sink)
	if err != nil {
		return nil, nil, err
	}

	c := &Compiled{Hash: hash, Result: result, Diags: sink.All()}
	p.artifacts[hash] = c
	p.stats.record("compile", false)
	observability.ProgramStageReuseTotal.WithLabelValues("compile", "recomputed").Inc()
	p.logger.Debug("compiled template", "session", p.SessionId, "file", st.file, "hash", hash)
	return hash, c, nil
}

// InvalidateTemplate forces the next read of one template to recompile,
// dropping its cached artifact.
func (p *Program) InvalidateTemplate(file span.FileId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.templates[file]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "template %s is not open", file)
	}
	delete(p.artifacts, st.hash)
	// Forced: the compile environment (catalog, oracle) changed even though
	// the template content did not, so shallow verification must not
	// re-certify the old compilation.
	return p.graph.Invalidate(st.compileNode)
}

// InvalidateAll drops every cached artifact and marks every open template
// stale. Used when project semantics change under the templates.
func (p *Program) InvalidateAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.artifacts = make(map[string]*Compiled)
	for _, st := range p.templates {
		if st.closed {
			continue
		}
		if err := p.graph.Invalidate(st.compileNode); err != nil {
			return err
		}
	}
	return nil
}

// CloseTemplate releases a template. Every later operation on it fails
// with a validation error; the file can be re-opened via UpsertTemplate
// only after a new program is built, matching editor session semantics.
func (p *Program) CloseTemplate(file span.FileId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.templates[file]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "template %s is not open", file)
	}
	if st.closed {
		return errors.Newf(errors.CodeValidationError, "template %s is already closed", file)
	}
	st.closed = true
	delete(p.artifacts, st.hash)
	return nil
}

// GetTemplateCacheStats reports one template's cache standing: its current
// content hash and whether a compiled artifact for that hash is held.
func (p *Program) GetTemplateCacheStats(file span.FileId) (TemplateCacheStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.templates[file]
	if !ok {
		return TemplateCacheStats{}, errors.Newf(errors.CodeNotFound, "template %s is not open", file)
	}
	_, cached := p.artifacts[st.hash]
	return TemplateCacheStats{
		File:           file,
		Hash:           st.hash,
		Open:           !st.closed,
		ArtifactCached: cached,
	}, nil
}

// GetCacheStats snapshots the session's reuse telemetry.
func (p *Program) GetCacheStats() CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.stats.clone()
	out.OpenTemplates = 0
	for _, st := range p.templates {
		if !st.closed {
			out.OpenTemplates++
		}
	}
	out.CachedArtifacts = len(p.artifacts)
	out.GraphNodes = p.graph.NodeCount()
	out.GraphEdges = p.graph.EdgeCount()
	return out
}
