package providers

import (
	"fmt"
	"strings"
)

// UnknownProviderError is returned for an explicit "provider:" prefix that
// is not registered.
type UnknownProviderError struct {
	Provider string
	Known    []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q (known providers: %s)", e.Provider, strings.Join(e.Known, ", "))
}

// UnknownModelError is returned when no provider claims a bare model name.
type UnknownModelError struct {
	Model    string
	Prefixes []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("cannot determine provider for model %q; use \"<provider>:<model>\" or one of the prefixes: %s",
		e.Model, strings.Join(e.Prefixes, ", "))
}

// MissingCredentialError lists every environment variable that was tried.
type MissingCredentialError struct {
	Provider string
	EnvVars  []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no API key configured for provider %q; set providers.%s.api_key in the config file or one of: %s",
		e.Provider, e.Provider, strings.Join(e.EnvVars, ", "))
}
