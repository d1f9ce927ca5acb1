package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
const DefaultEnvPrefix = "MARKSYNC_"

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct {
	path string
}

// NewTOMLLoader creates a new TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return &TOMLLoader{path: path}
}

// Load reads configuration from the configured path. A missing file yields
// a nil map and no error.
func (l *TOMLLoader) Load() (map[string]any, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}
	return parseTOML(l.path, data)
}

// parseTOML parses TOML data into a map.
func parseTOML(source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if err := toml.Unmarshal(data, &config); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return config, nil
}

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "MARKSYNC_")
	mapping map[string]string // Env var -> config path
	lookup  func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "MARKSYNC_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.Environ,
	}
}

// defaultEnvMapping returns the short forms of the common settings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":       "logging.level",
		prefix + "DEBOUNCE_MS":     "preview.debounce_ms",
		prefix + "MAX_COALESCE_MS": "preview.max_coalesce_ms",
		prefix + "EXTENSIONS":      "preview.parser_extensions",
		prefix + "THEME":           "terminal.theme",
	}
}

// listPaths are settings whose environment values are comma separated.
var listPaths = map[string]bool{
	"preview.parser_extensions": true,
}

// Load reads environment variables and returns a configuration map.
// Variables outside the short-form mapping name a section and a key:
// MARKSYNC_PREVIEW_DIVERGENCE_THRESHOLD sets preview.divergence_threshold.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.lookup() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			section, key, ok := strings.Cut(strings.TrimPrefix(name, l.prefix), "_")
			if !ok || section == "" || key == "" {
				continue
			}
			path = strings.ToLower(section) + "." + strings.ToLower(key)
		}

		if listPaths[path] {
			SetByPath(config, path, parseList(value))
			continue
		}
		SetByPath(config, path, parseValue(value))
	}

	return config, nil
}

// parseValue converts a string value to an appropriate type.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseList(s string) []any {
	out := []any{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
