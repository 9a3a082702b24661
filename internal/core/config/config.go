package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version       int           `toml:"version"`
	Workspace     Workspace     `toml:"workspace"`
	Watch         Watch         `toml:"watch"`
	Discovery     Discovery     `toml:"discovery"`
	Graph         Graph         `toml:"graph"`
	Link          Link          `toml:"link"`
	Typecheck     Typecheck     `toml:"typecheck"`
	Observability Observability `toml:"observability"`
	Trace         Trace         `toml:"trace"`
}

type Workspace struct {
	Root         string   `toml:"root"`
	SourceExts   []string `toml:"source_exts"`
	TemplateExts []string `toml:"template_exts"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
}

type Watch struct {
	Debounce      time.Duration `toml:"debounce"`
	RefreshPerSec float64       `toml:"refresh_per_sec"`
	RefreshBurst  int           `toml:"refresh_burst"`
}

type Discovery struct {
	// Defines are define-time constants substituted into registration
	// guards during partial evaluation (e.g. build flags).
	Defines map[string]interface{} `toml:"defines"`
	FactsDB FactsDB                `toml:"facts_db"`
}

type FactsDB struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Graph struct {
	// ConvergeBudget bounds re-evaluation rounds for cyclic node groups.
	ConvergeBudget int `toml:"converge_budget"`
}

type Link struct {
	// Commands maps binding-command names to binding modes. The recognized
	// command set is configuration, not a hardcoded switch.
	Commands map[string]string `toml:"commands"`
	// TwoWayDefaults lists native DOM properties that default to two-way
	// binding per host tag, e.g. input -> [value, checked].
	TwoWayDefaults map[string][]string `toml:"two_way_defaults"`
}

type Typecheck struct {
	// Strictness selects which mismatch categories are reported:
	// "lenient" or "standard".
	Strictness string `toml:"strictness"`
}

type Observability struct {
	Enabled      bool   `toml:"enabled"`
	Address      string `toml:"address"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

type Trace struct {
	Channels []string `toml:"channels"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Workspace.Root) == "" {
		cfg.Workspace.Root = "."
	}
	if len(cfg.Workspace.SourceExts) == 0 {
		cfg.Workspace.SourceExts = []string{".ts", ".js"}
	}
	if len(cfg.Workspace.TemplateExts) == 0 {
		cfg.Workspace.TemplateExts = []string{".html"}
	}
	if len(cfg.Workspace.ExcludeDirs) == 0 {
		cfg.Workspace.ExcludeDirs = []string{"**/node_modules", "**/dist", "**/.git"}
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.RefreshPerSec <= 0 {
		cfg.Watch.RefreshPerSec = 4
	}
	if cfg.Watch.RefreshBurst <= 0 {
		cfg.Watch.RefreshBurst = 2
	}

	if cfg.Graph.ConvergeBudget <= 0 {
		cfg.Graph.ConvergeBudget = 8
	}

	if len(cfg.Link.Commands) == 0 {
		cfg.Link.Commands = map[string]string{
			"bind":      "default",
			"to-view":   "toView",
			"one-way":   "toView",
			"two-way":   "twoWay",
			"from-view": "fromView",
			"one-time":  "oneTime",
			"trigger":   "listener",
			"capture":   "listener",
			"ref":       "ref",
		}
	}

	if len(cfg.Link.TwoWayDefaults) == 0 {
		// HTML's own two-way semantics; swappable, not load-bearing.
		cfg.Link.TwoWayDefaults = map[string][]string{
			"input":    {"value", "checked", "files"},
			"textarea": {"value"},
			"select":   {"value"},
			"details":  {"open"},
		}
	}

	if strings.TrimSpace(cfg.Typecheck.Strictness) == "" {
		cfg.Typecheck.Strictness = "standard"
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9471"
	}

	if strings.TrimSpace(cfg.Discovery.FactsDB.Path) == "" {
		cfg.Discovery.FactsDB.Path = "data/cache/facts.db"
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}
	switch cfg.Typecheck.Strictness {
	case "lenient", "standard":
	default:
		return fmt.Errorf("unknown typecheck strictness %q", cfg.Typecheck.Strictness)
	}
	for cmd, mode := range cfg.Link.Commands {
		switch mode {
		case "default", "toView", "twoWay", "fromView", "oneTime", "listener", "ref":
		default:
			return fmt.Errorf("command %q maps to unknown binding mode %q", cmd, mode)
		}
	}
	return nil
}
