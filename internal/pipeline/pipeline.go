package pipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"weft/internal/catalog"
	"weft/internal/core/diag"
	"weft/internal/core/errors"
	"weft/internal/core/span"
	"weft/internal/host"
	"weft/internal/shared/observability"
)

// Result bundles every artifact one compilation produces. All artifacts
// share the template's content hash; the program layer caches them under it.
type Result struct {
	IR      *TemplateIR
	Linked  *LinkedTemplate
	Bound   *BoundTemplate
	Overlay *Overlay
	SsrPlan *SsrPlan
	Ssr     string
}

// Compiler runs the template pipeline end to end. It holds only immutable
// collaborators, so one compiler is safe to share across templates.
type Compiler struct {
	tokenizer  host.Tokenizer
	provider   catalog.Provider
	oracle     host.TypeOracle
	commands   map[string]string
	strictness Strictness
	tracer     *diag.Tracer
}

type CompilerOptions struct {
	Tokenizer  host.Tokenizer
	Provider   catalog.Provider
	Oracle     host.TypeOracle
	Commands   map[string]string
	Strictness Strictness
	Tracer     *diag.Tracer
}

func NewCompiler(opts CompilerOptions) *Compiler {
	return &Compiler{
		tokenizer:  opts.Tokenizer,
		provider:   opts.Provider,
		oracle:     opts.Oracle,
		commands:   opts.Commands,
		strictness: opts.Strictness,
		tracer:     opts.Tracer,
	}
}

// Compile runs lower, link, bind, typecheck, overlay plan/emit plus the SSR
// branch for one template. A tokenizer failure is the only fatal outcome;
// everything past it degrades through diagnostics and placeholders.
func (c *Compiler) Compile(ctx context.Context, file span.FileId, source, vmType string, sink diag.Sink) (*Result, error) {
	if sink == nil {
		sink = diag.Discard{}
	}
	ctx, compileSpan := otel.Tracer("weft/pipeline").Start(ctx, "pipeline.compile",
		oteltrace.WithAttributes(attribute.String("template", string(file))))
	defer compileSpan.End()

	doc, err := c.tokenizer.Tokenize(file, source)
	if err != nil {
		werr := errors.Wrap(err, errors.CodeParseFailure, "tokenize template")
		return nil, errors.AddContext(werr, errors.CtxTemplate, string(file))
	}

	res := &Result{}

	c.phase(ctx, "lower", func() {
		res.IR = NewLowerer(c.commands, sink).Lower(doc)
	})
	if res.IR.Meta.Name == "" {
		res.IR.Meta.Name = templateName(file)
	}

	c.phase(ctx, "link", func() {
		res.Linked = NewLinker(c.provider, c.commands, sink).Link(res.IR)
	})
	c.phase(ctx, "bind", func() {
		res.Bound = Bind(res.Linked)
	})
	c.phase(ctx, "typecheck", func() {
		NewTypechecker(c.oracle, c.strictness, sink).Check(res.Bound, vmType)
	})
	c.phase(ctx, "overlay", func() {
		res.Overlay = EmitOverlay(PlanOverlay(res.Bound, vmType))
	})
	c.phase(ctx, "ssr", func() {
		res.SsrPlan = PlanSsr(res.Linked)
		res.Ssr = EmitSsr(res.SsrPlan)
	})

	c.tracer.Tracef(diag.ChannelPipeline, "compiled %s: %d exprs, %d mapping entries",
		file, res.IR.Exprs.Len(), len(res.Overlay.Mapping.Entries))
	return res, nil
}

func (c *Compiler) phase(ctx context.Context, name string, fn func()) {
	_, phaseSpan := otel.Tracer("weft/pipeline").Start(ctx, "pipeline."+name)
	start := time.Now()
	fn()
	observability.PipelinePhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	phaseSpan.End()
}

// templateName derives the element name used when the template declares
// none: the file basename without extension.
func templateName(file span.FileId) string {
	base := path.Base(string(file))
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}
