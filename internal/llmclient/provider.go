package llmclient

import (
	"net/http"
	"sync"
)

// Provider adapts this client's request/response shape to a specific
// OpenAI-compatible HTTP API. Providers are registered by name into a
// package-level registry so new backends can be added without touching the
// client itself.
type Provider interface {
	Name() string
	BuildURL(baseURL string) string
	SetHeaders(req *http.Request)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Provider{}
)

// RegisterProvider adds p to the global provider registry, keyed by
// p.Name(). Intended to be called from provider package init functions.
func RegisterProvider(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// GetProvider looks up a registered provider by name.
func GetProvider(name string) (Provider, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}
