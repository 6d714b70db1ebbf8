package fabric

import (
	"fmt"
	"sort"
	"strings"
)

// AllSourcesFailedError reports an exhausted fallback chain with one reason
// per attempted source.
type AllSourcesFailedError struct {
	Capability string
	Errors     map[string]string
}

func (e *AllSourcesFailedError) Error() string {
	return fmt.Sprintf("all sources failed for %s (%s)", e.Capability, e.reasons())
}

// Warning renders the failure as its envelope warning line, prefixed with
// the capability name.
func (e *AllSourcesFailedError) Warning() string {
	return fmt.Sprintf("%s: all sources failed (%s)", e.Capability, e.reasons())
}

func (e *AllSourcesFailedError) reasons() string {
	names := make([]string, 0, len(e.Errors))
	for name := range e.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Errors[name]))
	}
	return strings.Join(parts, "; ")
}

// AmbiguousSymbolError reports an under-specified input, typically a
// multi-chain symbol with no chain or token_address disambiguator. Tools
// surface it as a warning unless they cannot proceed at all.
type AmbiguousSymbolError struct {
	Symbol string
	Detail string
}

func (e *AmbiguousSymbolError) Error() string {
	return fmt.Sprintf("ambiguous symbol %q: %s", e.Symbol, e.Detail)
}
