package transcribe

import (
	"errors"
	"sync"
)

var ErrMissingAPIKey = errors.New("api key not set for provider")

// Registry hands out one client per provider, created lazily on first
// use. A key change for a provider replaces its cached client.
type Registry struct {
	mu      sync.Mutex
	clients map[Provider]*cachedClient
}

type cachedClient struct {
	apiKey string
	client Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[Provider]*cachedClient)}
}

func (r *Registry) Get(provider Provider, apiKey string) (Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[provider]; ok && c.apiKey == apiKey {
		return c.client, nil
	}

	var client Client
	switch provider {
	case ProviderOpenAI:
		client = NewOpenAI(apiKey)
	case ProviderGroq:
		client = NewGroq(apiKey)
	default:
		return nil, errors.New("unknown provider " + string(provider))
	}
	r.clients[provider] = &cachedClient{apiKey: apiKey, client: client}
	return client, nil
}
