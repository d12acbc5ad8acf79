package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches ${NAME} and ${NAME:-fallback}. A backslash escapes a
// closing brace inside the fallback.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// UnresolvedError lists the environment references in a config file that
// have neither a value nor a fallback. Secrets such as the provider API key
// and the admin token usually arrive this way, so each reference is
// reported with its line.
type UnresolvedError struct {
	Path string
	Refs []UnresolvedRef
}

// UnresolvedRef is one ${NAME} that could not be expanded.
type UnresolvedRef struct {
	Name string
	Line int
}

func (e *UnresolvedError) Error() string {
	parts := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		parts[i] = fmt.Sprintf("${%s} (line %d)", r.Name, r.Line)
	}
	return fmt.Sprintf("config: %s: unset environment variables %s; export them, add them to .env, or write ${NAME:-fallback}",
		e.Path, strings.Join(parts, ", "))
}

// Load reads the webhook YAML file at path, expands environment references
// and decodes the result. Module sections stay raw until each module
// configures itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading webhook config: %w", err)
	}

	expanded, refs := expandEnv(raw)
	if len(refs) > 0 {
		return nil, &UnresolvedError{Path: path, Refs: refs}
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s is not valid YAML: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes environment references line by line. Lines that are
// entirely a YAML comment are copied untouched, so commented-out settings
// never demand a variable. The second result holds one entry per
// unresolvable reference.
func expandEnv(raw []byte) ([]byte, []UnresolvedRef) {
	var refs []UnresolvedRef
	lines := bytes.SplitAfter(raw, []byte("\n"))
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("#")) {
			continue
		}
		lines[i] = envRef.ReplaceAllFunc(line, func(match []byte) []byte {
			subs := envRef.FindSubmatch(match)
			name := string(subs[1])
			if value, ok := os.LookupEnv(name); ok {
				return []byte(value)
			}
			if subs[2] != nil {
				return subs[2]
			}
			refs = append(refs, UnresolvedRef{Name: name, Line: i + 1})
			return match
		})
	}
	return bytes.Join(lines, nil), refs
}
