package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// FileName is the configuration file looked up from the unit's directory.
const FileName = "owninfer.toml"

// CalleePolicy decides how an argument to a callee with no known signature
// is classified.
type CalleePolicy string

const (
	// CalleeMove treats the argument as moved; the parameter becomes Owned.
	CalleeMove CalleePolicy = "move"
	// CalleeRead treats the argument as a plain read.
	CalleeRead CalleePolicy = "read"
)

var (
	ErrUnknownCallee = errors.New("unknown_callee must be \"move\" or \"read\"")
	ErrNegative      = errors.New("value must not be negative")
	ErrMacroName     = errors.New("macro names are given without the trailing '!'")
)

type Config struct {
	Policy Policy      `toml:"policy"`
	Driver Driver      `toml:"driver"`
	Trace  TraceConfig `toml:"trace"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type Policy struct {
	// CopyTypes extends the built-in copy-semantics primitives.
	CopyTypes []string `toml:"copy_types"`
	// TextTypes are named types treated like the built-in text type.
	TextTypes        []string `toml:"text_types"`
	MutatingMethods  []string `toml:"mutating_methods"`
	MutatingSuffixes []string `toml:"mutating_suffixes"`
	// CollectionMacros build a collection that owns their arguments, as
	// vec![...] does; other macros only read theirs.
	CollectionMacros []string     `toml:"collection_macros"`
	UnknownCallee    CalleePolicy `toml:"unknown_callee"`
}

type Driver struct {
	// Jobs bounds parallel per-function work; 0 means GOMAXPROCS.
	Jobs           int `toml:"jobs"`
	MaxDiagnostics int `toml:"max_diagnostics"`
	// MaxRounds caps the interprocedural fixpoint; 0 derives the bound from
	// the parameter count.
	MaxRounds int `toml:"max_rounds"`
}

type TraceConfig struct {
	Level     string   `toml:"level"`
	Mode      string   `toml:"mode"`
	Format    string   `toml:"format"`
	Output    string   `toml:"output"`
	Heartbeat Duration `toml:"heartbeat"`
}

// Duration decodes TOML strings such as "500ms".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Policy: Policy{
			MutatingMethods: []string{
				"push", "push_str", "insert", "remove", "clear",
				"pop", "append", "extend", "truncate",
			},
			MutatingSuffixes: []string{"_mut"},
			CollectionMacros: []string{"vec"},
			UnknownCallee:    CalleeMove,
		},
		Driver: Driver{
			MaxDiagnostics: 200,
		},
		Trace: TraceConfig{
			Level: "off",
			Mode:  "stream",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Policy.UnknownCallee {
	case CalleeMove, CalleeRead:
	default:
		return fmt.Errorf("[policy].unknown_callee = %q: %w", c.Policy.UnknownCallee, ErrUnknownCallee)
	}
	if c.Driver.Jobs < 0 {
		return fmt.Errorf("[driver].jobs: %w", ErrNegative)
	}
	if c.Driver.MaxDiagnostics < 0 {
		return fmt.Errorf("[driver].max_diagnostics: %w", ErrNegative)
	}
	if c.Driver.MaxRounds < 0 {
		return fmt.Errorf("[driver].max_rounds: %w", ErrNegative)
	}
	for _, name := range c.Policy.CopyTypes {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("[policy].copy_types: empty type name")
		}
	}
	for _, name := range c.Policy.CollectionMacros {
		if name == "" || strings.HasSuffix(name, "!") {
			return fmt.Errorf("[policy].collection_macros = %q: %w", name, ErrMacroName)
		}
	}
	return nil
}

// IsMutatingMethod applies the method-name heuristics used when the
// receiver's method has no known signature.
func (p *Policy) IsMutatingMethod(name string) bool {
	if slices.Contains(p.MutatingMethods, name) {
		return true
	}
	for _, suf := range p.MutatingSuffixes {
		if suf != "" && strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// IsCollectionMacro reports whether the macro name! stores its arguments.
func (p *Policy) IsCollectionMacro(name string) bool {
	return slices.Contains(p.CollectionMacros, name)
}
