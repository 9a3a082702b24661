package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"weft/internal/catalog"
	"weft/internal/core/config"
	"weft/internal/core/diag"
	"weft/internal/core/span"
	"weft/internal/discovery"
	"weft/internal/host"
	"weft/internal/host/htmltok"
	"weft/internal/host/tsfacts"
	"weft/internal/pipeline"
	"weft/internal/program"
)

// workspace is the scanned file set of one project root.
type workspace struct {
	Root      string
	Sources   map[span.FileId][]byte
	Templates map[span.FileId]string
}

// loadWorkspace walks the project root collecting view-model sources and
// templates, honoring the configured exclude globs.
func loadWorkspace(cfg *config.Config) (*workspace, error) {
	excludeDirs := make([]glob.Glob, 0, len(cfg.Workspace.ExcludeDirs))
	for _, pattern := range cfg.Workspace.ExcludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		excludeDirs = append(excludeDirs, g)
	}
	excludeFiles := make([]glob.Glob, 0, len(cfg.Workspace.ExcludeFiles))
	for _, pattern := range cfg.Workspace.ExcludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		excludeFiles = append(excludeFiles, g)
	}

	sourceExts := make(map[string]bool)
	for _, ext := range cfg.Workspace.SourceExts {
		sourceExts[strings.ToLower(ext)] = true
	}
	templateExts := make(map[string]bool)
	for _, ext := range cfg.Workspace.TemplateExts {
		templateExts[strings.ToLower(ext)] = true
	}

	ws := &workspace{
		Root:      cfg.Workspace.Root,
		Sources:   make(map[span.FileId][]byte),
		Templates: make(map[span.FileId]string),
	}

	err := filepath.Walk(cfg.Workspace.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(cfg.Workspace.Root, path)
		if relErr != nil {
			rel = path
		}
		if info.IsDir() {
			base := filepath.Base(path)
			for _, g := range excludeDirs {
				if g.Match(base) || g.Match(rel) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		base := strings.ToLower(filepath.Base(path))
		for _, g := range excludeFiles {
			if g.Match(base) {
				return nil
			}
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case sourceExts[ext] && !strings.HasSuffix(base, ".d.ts"):
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			ws.Sources[span.FileId(filepath.ToSlash(rel))] = content
		case templateExts[ext]:
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			ws.Templates[span.FileId(filepath.ToSlash(rel))] = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// engine bundles the assembled services one command run works with.
type engine struct {
	cfg       *config.Config
	ws        *workspace
	discovery *discovery.Result
	oracle    host.TypeOracle
	compiler  *pipeline.Compiler
	program   *program.Program
	tracer    *diag.Tracer
}

func buildEngine(cfg *config.Config, ws *workspace, sink diag.Sink) *engine {
	var channels []diag.Channel
	for _, ch := range cfg.Trace.Channels {
		channels = append(channels, diag.Channel(ch))
	}
	tracer := diag.NewTracer(nil, channels...)

	tokenizer := htmltok.New()
	disc := discovery.New(discovery.Options{
		Tokenizer: tokenizer,
		Defines:   cfg.Discovery.Defines,
		Native:    catalog.NewNativeSchema(cfg.Link.TwoWayDefaults),
		Tracer:    tracer,
	})
	// The sqlite facts store is purely an accelerator: a cold process seeds
	// the in-memory cache from it, a warm one writes back. Failures degrade
	// to extraction, never abort.
	var factsDB *discovery.FactsDB
	if cfg.Discovery.FactsDB.Enabled {
		db, err := discovery.OpenFactsDB(cfg.Discovery.FactsDB.Path, cfg.Workspace.Root)
		if err != nil {
			slog.Warn("facts db unavailable", "path", cfg.Discovery.FactsDB.Path, "error", err)
		} else {
			factsDB = db
			if err := factsDB.SeedCache(disc.Cache(), ws.Sources); err != nil {
				slog.Warn("facts db seed failed", "error", err)
			}
		}
	}

	result := disc.Run(discovery.Input{Sources: ws.Sources, Templates: ws.Templates}, sink)

	if factsDB != nil {
		if err := factsDB.Persist(disc.Cache()); err != nil {
			slog.Warn("facts db persist failed", "error", err)
		}
		if err := factsDB.Prune(ws.Sources); err != nil {
			slog.Warn("facts db prune failed", "error", err)
		}
		if err := factsDB.Close(); err != nil {
			slog.Warn("facts db close failed", "error", err)
		}
	}

	oracle := oracleFromSources(ws.Sources)
	compiler := pipeline.NewCompiler(pipeline.CompilerOptions{
		Tokenizer:  tokenizer,
		Provider:   result.Catalog,
		Oracle:     oracle,
		Commands:   cfg.Link.Commands,
		Strictness: pipeline.Strictness(cfg.Typecheck.Strictness),
		Tracer:     tracer,
	})

	return &engine{
		cfg:       cfg,
		ws:        ws,
		discovery: result,
		oracle:    oracle,
		compiler:  compiler,
		program: program.New(program.Options{
			Compiler:       compiler,
			ConvergeBudget: cfg.Graph.ConvergeBudget,
			Tracer:         tracer,
		}),
		tracer: tracer,
	}
}

// oracleFromSources builds the static type oracle out of extracted class
// shapes: every class becomes a named type with its declared field types.
func oracleFromSources(sources map[span.FileId][]byte) *host.StaticOracle {
	extractor := tsfacts.NewExtractor()
	var types []host.TypeInfo
	for file, content := range sources {
		if !extractor.SupportsPath(string(file)) {
			continue
		}
		facts, err := extractor.Extract(file, content)
		if err != nil {
			continue
		}
		for _, cls := range facts.Classes {
			members := make(map[string]string, len(cls.Fields))
			for _, f := range cls.Fields {
				if f.Static {
					continue
				}
				typeName := f.TypeName
				if typeName == "" {
					typeName = "any"
				}
				members[f.Name] = typeName
			}
			types = append(types, host.TypeInfo{Name: cls.Name, Members: members})
		}
	}
	return host.NewStaticOracle(types...)
}

// vmTypeFor picks the view-model type for a template: the declaring class
// of the custom element whose file basename matches, else the PascalCase
// of the template name.
func (e *engine) vmTypeFor(file span.FileId) string {
	base := strings.TrimSuffix(filepath.Base(string(file)), filepath.Ext(string(file)))
	for _, r := range e.discovery.Resources {
		declFile, stubbed := r.DeclFile.OrStub("")
		if stubbed {
			continue
		}
		declBase := strings.TrimSuffix(filepath.Base(declFile), filepath.Ext(declFile))
		if declBase == base {
			if name, nameStubbed := r.DeclName.OrStub(""); !nameStubbed && name != "" {
				return name
			}
		}
	}
	return pascalCase(base)
}

func pascalCase(kebab string) string {
	parts := strings.FieldsFunc(kebab, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
