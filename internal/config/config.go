// Package config loads ttrace project configuration from an optional
// ttrace.toml file found by walking upward from the working directory.
// Command-line flags override the file; the file overrides the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultSuite is the suite path attributed to steps recorded while no
// runtime grouping is active.
const DefaultSuite = "DefaultSuite"

// DefaultMaxVars is the default cap on captured identifiers per step.
const DefaultMaxVars = 10

// Config is the on-disk project configuration.
//
// Example ttrace.toml:
//
//	[instrument]
//	suite = "MyProject"
//	max-vars = 12
//	out-dir = "build/instrumented"
//
//	[trace]
//	root = "."
type Config struct {
	Instrument InstrumentConfig `toml:"instrument"`
	Trace      TraceConfig      `toml:"trace"`
}

// InstrumentConfig configures the source transformer.
type InstrumentConfig struct {
	// Suite is the default suite name substituted when no describe() block
	// is active at runtime.
	Suite string `toml:"suite"`
	// MaxVars caps the number of identifiers captured per step; zero or
	// negative disables instrumentation entirely.
	MaxVars int `toml:"max-vars"`
	// OutDir, when set, receives instrumented files instead of writing them
	// next to their inputs.
	OutDir string `toml:"out-dir"`
	// Include restricts instrumentation to files matching at least one of
	// these glob patterns. Empty means everything found is included.
	Include []string `toml:"include"`
	// Exclude drops files matching any of these glob patterns, after Include
	// is applied.
	Exclude []string `toml:"exclude"`
}

// TraceConfig configures where instrumented programs write their step files.
type TraceConfig struct {
	// Root is the directory the .trace tree is created under at runtime.
	Root string `toml:"root"`
}

// Default returns the configuration used when no ttrace.toml exists.
func Default() Config {
	return Config{
		Instrument: InstrumentConfig{
			Suite:   DefaultSuite,
			MaxVars: DefaultMaxVars,
		},
		Trace: TraceConfig{
			Root: ".",
		},
	}
}

// Find walks upward from startDir looking for a ttrace.toml file. It returns
// the path and true when found, or false when the search reaches the
// filesystem root without a hit.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "ttrace.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and parses the project configuration, filling unset fields from
// Default. When no ttrace.toml exists the defaults are returned unchanged.
func Load(startDir string) (Config, error) {
	cfg := Default()
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return cfg, err
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("instrument", "suite") && strings.TrimSpace(cfg.Instrument.Suite) == "" {
		return Config{}, fmt.Errorf("%s: [instrument].suite must not be empty", path)
	}
	// Note: an explicit max-vars of zero is a deliberate "off" switch; only
	// an absent key keeps the default seeded by Default().
	if strings.TrimSpace(cfg.Trace.Root) == "" {
		cfg.Trace.Root = "."
	}
	return cfg, nil
}
