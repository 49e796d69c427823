package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file and parses it into a Config.
// ${VAR} and ${VAR:-default} expressions are expanded from the environment
// before parsing, so secrets like API keys stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, missing := expandEnv(raw)
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: %s: unresolved variables: %s",
			path, strings.Join(missing, ", "))
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// expandEnv substitutes environment variables into raw YAML bytes.
// A variable with neither an environment value nor a default is left
// in place and reported in the returned list.
func expandEnv(raw []byte) ([]byte, []string) {
	var missing []string

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}

		missing = append(missing, name)
		return match
	})

	return result, missing
}

// Resolve returns the configured module IDs sorted alphabetically, which
// fixes the load order across runs.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
