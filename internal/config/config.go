package config

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/marksync/internal/logging"
	"github.com/dshills/marksync/internal/markdown"
)

// Limits on the render intervals, in milliseconds.
const (
	MinDebounceMs = 1
	MaxDebounceMs = 60000
)

// Config is the complete marksync configuration.
type Config struct {
	Preview  PreviewConfig  `toml:"preview"`
	Logging  LoggingConfig  `toml:"logging"`
	Terminal TerminalConfig `toml:"terminal"`
}

// PreviewConfig configures the render pipeline.
type PreviewConfig struct {
	// DebounceMs is how long edits must pause before a render starts.
	DebounceMs int `toml:"debounce_ms"`

	// MaxCoalesceMs bounds how long a render may be postponed by a stream
	// of edits.
	MaxCoalesceMs int `toml:"max_coalesce_ms"`

	// ParserExtensions lists the markdown extensions to enable.
	ParserExtensions []string `toml:"parser_extensions"`

	// DivergenceThreshold is the share of unaligned children above which
	// the view updater replaces a whole subtree.
	DivergenceThreshold float64 `toml:"divergence_threshold"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// TerminalConfig configures the terminal preview.
type TerminalConfig struct {
	// Theme is "dark" or "light".
	Theme string `toml:"theme"`

	// Accent is a hex color used for headings and links. Empty selects
	// the theme's accent.
	Accent string `toml:"accent"`

	// Wrap wraps long lines instead of clipping them.
	Wrap bool `toml:"wrap"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Preview: PreviewConfig{
			DebounceMs:          250,
			MaxCoalesceMs:       1000,
			ParserExtensions:    append([]string(nil), markdown.DefaultExtensions...),
			DivergenceThreshold: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Terminal: TerminalConfig{
			Theme: "dark",
			Wrap:  true,
		},
	}
}

// Debounce returns the debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Preview.DebounceMs) * time.Millisecond
}

// MaxCoalesce returns the maximum coalescing window.
func (c *Config) MaxCoalesce() time.Duration {
	return time.Duration(c.Preview.MaxCoalesceMs) * time.Millisecond
}

// Validate checks the configuration. All problems are reported, joined.
func (c *Config) Validate() error {
	var errs []error
	p := c.Preview
	if p.DebounceMs < MinDebounceMs || p.DebounceMs > MaxDebounceMs {
		errs = append(errs, &ValidationError{
			Path:    "preview.debounce_ms",
			Message: fmt.Sprintf("must be between %d and %d", MinDebounceMs, MaxDebounceMs),
			Value:   p.DebounceMs,
		})
	}
	if p.MaxCoalesceMs < p.DebounceMs {
		errs = append(errs, &ValidationError{
			Path:    "preview.max_coalesce_ms",
			Message: "must not be less than preview.debounce_ms",
			Value:   p.MaxCoalesceMs,
		})
	}
	if p.DivergenceThreshold <= 0 || p.DivergenceThreshold > 1 {
		errs = append(errs, &ValidationError{
			Path:    "preview.divergence_threshold",
			Message: "must be in (0, 1]",
			Value:   p.DivergenceThreshold,
		})
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, &ValidationError{
			Path:    "logging.level",
			Message: "must be one of debug, info, warn, error",
			Value:   c.Logging.Level,
		})
	}
	if t := c.Terminal.Theme; t != "dark" && t != "light" {
		errs = append(errs, &ValidationError{
			Path:    "terminal.theme",
			Message: "must be dark or light",
			Value:   t,
		})
	}
	if a := c.Terminal.Accent; a != "" {
		if _, err := colorful.Hex(a); err != nil {
			errs = append(errs, &ValidationError{
				Path:    "terminal.accent",
				Message: "must be a #rrggbb color",
				Value:   a,
			})
		}
	}
	return errors.Join(errs...)
}

// Changed returns the sorted paths of the settings that differ between a
// and b.
func Changed(a, b *Config) []string {
	ma, err := toMap(a)
	if err != nil {
		return nil
	}
	mb, err := toMap(b)
	if err != nil {
		return nil
	}
	return changedPaths(ma, mb)
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	envPrefix string
	noEnv     bool
	log       *logging.Logger
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutEnv skips the environment layer.
func WithoutEnv() Option {
	return func(o *loadOptions) {
		o.noEnv = true
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(o *loadOptions) {
		o.log = l
	}
}

func newLoadOptions(opts []Option) *loadOptions {
	o := &loadOptions{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logging.OrNull(o.log).WithComponent("config")
	return o
}

// Load builds the configuration from the defaults, the TOML file at path
// and the environment, and validates it. An empty path or a missing file
// skips the file layer. Unknown keys are logged and ignored.
func Load(path string, opts ...Option) (*Config, error) {
	o := newLoadOptions(opts)

	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	if path != "" {
		file, err := NewTOMLLoader(path).Load()
		if err != nil {
			return nil, err
		}
		if file == nil {
			o.log.Debug("no config file at %s", path)
		}
		merged = DeepMerge(merged, file)
	}

	if !o.noEnv {
		env, err := NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, env)
	}

	normalize(merged)
	cfg, err := decode(merged, o.log)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// floatPaths are settings that TOML or the environment may spell as
// integers.
var floatPaths = []string{"preview.divergence_threshold"}

func normalize(m map[string]any) {
	for _, path := range floatPaths {
		switch v, _ := GetByPath(m, path); n := v.(type) {
		case int64:
			SetByPath(m, path, float64(n))
		case int:
			SetByPath(m, path, float64(n))
		}
	}
}

// decode turns a merged map into a Config through a TOML round trip.
func decode(m map[string]any, log *logging.Logger) (*Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}

	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)

	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		log.Warn("ignoring unknown settings:\n%s", strict.String())
		cfg = &Config{}
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ParseError{Path: "<merged>", Message: err.Error(), Err: err}
	}
	return cfg, nil
}

func toMap(c *Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return m, nil
}
