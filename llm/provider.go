package llm

import (
	"net/http"
	"sync"
)

// Provider adapts the client to one LLM API dialect.
type Provider interface {
	// Name is the identifier endpoints reference ("anthropic",
	// "openai", "ollama").
	Name() string

	// BuildURL turns an endpoint's base URL (possibly empty) into the
	// full completion URL.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and dialect headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody renders the JSON request body. A nil
	// temperature uses the endpoint default; maxTokens 0 likewise.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the completion from the provider's
	// response JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerMu       sync.RWMutex
	providerRegistry = make(map[string]Provider)
)

// RegisterProvider makes a provider available by name. Providers
// register themselves from init.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider returns a registered provider, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}
