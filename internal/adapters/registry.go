// Registry manages adapter registration and lookup.
//
// DESIGN: Thread-safe map of source name → Adapter, populated once at
// startup from the configured descriptors and read-only afterwards.
package adapters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory builds one adapter from its descriptor and resolved credentials.
type Factory func(d Descriptor, apiKey, apiSecret string) (Adapter, error)

// factories maps source names to constructors. Adding a provider means
// adding its file and one entry here.
var factories = map[string]Factory{
	"binance":        newBinance,
	"okx":            newOKX,
	"kraken":         newKraken,
	"bybit":          newBybit,
	"deribit":        newDeribit,
	"coingecko":      newCoinGecko,
	"coinmarketcap":  newCoinMarketCap,
	"cryptocompare":  newCryptoCompare,
	"defillama":      newDefiLlama,
	"thegraph":       newTheGraph,
	"dexscreener":    newDexScreener,
	"etherscan":      newEtherscan,
	"blockchair":     newBlockchair,
	"goplus":         newGoPlus,
	"github":         newGitHub,
	"fred":           newFRED,
	"alternative_me": newAlternativeMe,
	"cryptopanic":    newCryptoPanic,
}

// CredentialFunc resolves the API key and secret for a source name.
type CredentialFunc func(name string) (key, secret string)

// Registry manages adapter registration.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Build constructs adapters for every configured descriptor. Sources that
// require an API key but have none resolved are skipped with a warning, so
// their chains fall through to the next source. Unknown source names are a
// configuration error.
func Build(descriptors map[string]Descriptor, creds CredentialFunc) (*Registry, error) {
	r := NewRegistry()
	for name, d := range descriptors {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q in configuration", name)
		}

		key, secret := "", ""
		if creds != nil {
			key, secret = creds(name)
		}
		if d.RequiresAPIKey && key == "" {
			log.Warn().Str("source", name).Msg("skipping source: no API key configured")
			continue
		}

		a, err := factory(d, key, secret)
		if err != nil {
			return nil, fmt.Errorf("build source %q: %w", name, err)
		}
		r.Register(a)
	}
	return r, nil
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every adapter. Called once at shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, a := range r.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return firstErr
}
