package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"neurochat/internal/logger"
)

// CacheKey identifies one client instance. The credential is only kept as a fingerprint.
type CacheKey struct {
	Provider    string
	Fingerprint string
	Timeout     time.Duration
}

// Fingerprint hashes an API key so it can be used as a cache key without being stored.
func Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

// Cache creates and caches clients per (provider, credential, timeout).
// It must be invalidated whenever the timeout or the active model changes.
type Cache struct {
	constructors map[string]Constructor
	clients      map[CacheKey]Client
	mutex        sync.RWMutex
}

// DefaultConstructors returns the built-in provider adapters.
func DefaultConstructors() map[string]Constructor {
	return map[string]Constructor{
		"openai":    func(key string, timeout time.Duration) Client { return NewOpenAIClient(key, timeout) },
		"anthropic": func(key string, timeout time.Duration) Client { return NewAnthropicClient(key, timeout) },
		"gemini":    func(key string, timeout time.Duration) Client { return NewGeminiClient(key, timeout) },
		"echo":      func(string, time.Duration) Client { return NewEchoClient() },
	}
}

// NewCache creates a cache backed by the given constructors.
func NewCache(constructors map[string]Constructor) *Cache {
	if constructors == nil {
		constructors = DefaultConstructors()
	}
	return &Cache{
		constructors: constructors,
		clients:      make(map[CacheKey]Client),
	}
}

// Supported returns the provider names the cache can build clients for.
func (c *Cache) Supported() []string {
	names := make([]string, 0, len(c.constructors))
	for name := range c.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether a constructor exists for provider.
func (c *Cache) IsSupported(provider string) bool {
	_, ok := c.constructors[provider]
	return ok
}

// Get returns the cached client for the key, creating it on first use.
func (c *Cache) Get(provider, apiKey string, timeout time.Duration) (Client, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}
	key := CacheKey{Provider: provider, Fingerprint: Fingerprint(apiKey), Timeout: timeout}

	c.mutex.RLock()
	if client, exists := c.clients[key]; exists {
		c.mutex.RUnlock()
		logger.Debug("Returning cached provider client", "provider", provider)
		return client, nil
	}
	c.mutex.RUnlock()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if client, exists := c.clients[key]; exists {
		return client, nil
	}

	construct, ok := c.constructors[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider '%s'. Supported providers: %v", provider, c.Supported())
	}
	client := construct(apiKey, timeout)
	c.clients[key] = client

	logger.Debug("Created new provider client", "provider", provider, "timeout", timeout)
	return client, nil
}

// Invalidate evicts every cached client.
func (c *Cache) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.clients) > 0 {
		logger.Debug("Provider client cache invalidated", "evicted", len(c.clients))
	}
	c.clients = make(map[CacheKey]Client)
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.clients)
}
