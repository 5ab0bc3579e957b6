package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment variable placeholders within configuration data.
type EnvironmentExpander interface {
	// Expand replaces ${VAR}, ${VAR:-default} or $VAR placeholders in input.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment. Unset variables
// become empty unless the placeholder carries a default.
type OsEnvironmentExpander struct {
	lookup lookupFunc
}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{lookup: os.LookupEnv}
}

// Expand replaces every placeholder in input. ${VAR:-default} yields default when VAR is
// unset or empty.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return []byte(os.Expand(string(input), func(name string) string {
		key, def, hasDefault := strings.Cut(name, ":-")
		if v, ok := lookup(key); ok && (v != "" || !hasDefault) {
			return v
		}
		return def
	})), nil
}
