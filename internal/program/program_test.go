package program

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/catalog"
	"weft/internal/core/config"
	"weft/internal/host"
	"weft/internal/host/htmltok"
	"weft/internal/pipeline"
)

func newTestProgram() *Program {
	oracle := host.NewStaticOracle(
		host.TypeInfo{Name: "WidgetVm", Members: map[string]string{
			"name":  "string",
			"items": "string[]",
		}},
	)
	compiler := pipeline.NewCompiler(pipeline.CompilerOptions{
		Tokenizer:  htmltok.New(),
		Provider:   catalog.NewCatalog(nil),
		Oracle:     oracle,
		Commands:   config.Default().Link.Commands,
		Strictness: pipeline.StrictnessStandard,
	})
	return New(Options{Compiler: compiler})
}

func TestProgramCompilesOnceWhileFresh(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("app/widget.html", `<template><div>${name}</div></template>`, "WidgetVm"))

	overlay, diags, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.NotNil(t, overlay)
	require.Empty(t, diags)

	ssr, _, err := p.GetSsr(ctx, "app/widget.html")
	require.NoError(t, err)
	require.NotEmpty(t, ssr)

	stats := p.GetCacheStats()
	require.Equal(t, 1, stats.StageReuse["compile"].Recomputed, "both reads share one compilation")
	require.Equal(t, 1, stats.OpenTemplates)
	require.Equal(t, 1, stats.CachedArtifacts)
}

func TestProgramIdenticalUpsertIsNoop(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()
	src := `<template><div>${name}</div></template>`

	require.NoError(t, p.UpsertTemplate("app/widget.html", src, "WidgetVm"))
	_, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)

	// Same bytes: the source node's green does not change, nothing goes
	// stale, the next read is a pure cache hit.
	require.NoError(t, p.UpsertTemplate("app/widget.html", src, "WidgetVm"))
	_, _, err = p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)

	require.Equal(t, 1, p.GetCacheStats().StageReuse["compile"].Recomputed)
}

func TestProgramRevertedContentReusesArtifact(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()
	v1 := `<template><div>${name}</div></template>`
	v2 := `<template><span>${name}</span></template>`

	require.NoError(t, p.UpsertTemplate("app/widget.html", v1, "WidgetVm"))
	o1, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)

	require.NoError(t, p.UpsertTemplate("app/widget.html", v2, "WidgetVm"))
	_, _, err = p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.Equal(t, 2, p.GetCacheStats().StageReuse["compile"].Recomputed)

	// Reverting to previously seen bytes hits the content-hash artifact
	// cache instead of running the pipeline a third time.
	require.NoError(t, p.UpsertTemplate("app/widget.html", v1, "WidgetVm"))
	o3, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.Equal(t, 2, p.GetCacheStats().StageReuse["compile"].Recomputed)
	require.Equal(t, o1.Text, o3.Text)
}

func TestProgramInvalidateForcesRecompile(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("app/widget.html", `<template>static</template>`, "WidgetVm"))
	o1, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)

	// The content hash is unchanged, so neither the source node's green nor
	// shallow verification may rescue the stale compilation: the pipeline
	// must actually run again and its result must be the one served.
	require.NoError(t, p.InvalidateTemplate("app/widget.html"))
	o2, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.Equal(t, 2, p.GetCacheStats().StageReuse["compile"].Recomputed)
	require.NotSame(t, o1, o2, "a forced invalidation must not serve the old artifact")
}

func TestProgramInvalidateAll(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("a.html", `<template>a</template>`, "WidgetVm"))
	require.NoError(t, p.UpsertTemplate("b.html", `<template>b</template>`, "WidgetVm"))
	_, _, err := p.GetOverlay(ctx, "a.html")
	require.NoError(t, err)
	_, _, err = p.GetOverlay(ctx, "b.html")
	require.NoError(t, err)

	require.NoError(t, p.InvalidateAll())
	require.Equal(t, 0, p.GetCacheStats().CachedArtifacts)

	_, _, err = p.GetOverlay(ctx, "a.html")
	require.NoError(t, err)
	require.Equal(t, 3, p.GetCacheStats().StageReuse["compile"].Recomputed)
}

func TestProgramTemplateCacheStats(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("app/widget.html", `<template>x</template>`, "WidgetVm"))

	ts, err := p.GetTemplateCacheStats("app/widget.html")
	require.NoError(t, err)
	require.True(t, ts.Open)
	require.NotEmpty(t, ts.Hash)
	require.False(t, ts.ArtifactCached, "nothing compiled yet")

	_, _, err = p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	ts, err = p.GetTemplateCacheStats("app/widget.html")
	require.NoError(t, err)
	require.True(t, ts.ArtifactCached)

	require.NoError(t, p.InvalidateTemplate("app/widget.html"))
	ts, err = p.GetTemplateCacheStats("app/widget.html")
	require.NoError(t, err)
	require.False(t, ts.ArtifactCached, "invalidation drops the artifact")

	_, err = p.GetTemplateCacheStats("nope.html")
	require.Error(t, err)
}

func TestProgramClosedTemplateFailsClearly(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("app/widget.html", `<template>x</template>`, "WidgetVm"))
	require.NoError(t, p.CloseTemplate("app/widget.html"))

	_, _, err := p.GetOverlay(ctx, "app/widget.html")
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")

	require.Error(t, p.UpsertTemplate("app/widget.html", `<template>y</template>`, "WidgetVm"))
	require.Error(t, p.CloseTemplate("app/widget.html"))

	require.Equal(t, 0, p.GetCacheStats().OpenTemplates)
}

func TestProgramUnknownTemplate(t *testing.T) {
	p := newTestProgram()
	_, _, err := p.GetOverlay(context.Background(), "nope.html")
	require.Error(t, err)

	require.Error(t, p.InvalidateTemplate("nope.html"))
	require.Error(t, p.CloseTemplate("nope.html"))
}

func TestProgramDiagnosticsReplayOnCacheHit(t *testing.T) {
	p := newTestProgram()
	ctx := context.Background()

	require.NoError(t, p.UpsertTemplate("app/widget.html", `<template><div>${missing}</div></template>`, "WidgetVm"))

	_, diags1, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.NotEmpty(t, diags1)

	_, diags2, err := p.GetOverlay(ctx, "app/widget.html")
	require.NoError(t, err)
	require.Equal(t, diags1, diags2)
	require.Equal(t, 1, p.GetCacheStats().StageReuse["compile"].Recomputed)
}
