// Package session holds the mutable per-chat state of a neurochat session: the active
// provider and model pairs, the secret and search toggles, the transient retry
// sub-session, the hex id registry and the provider client cache.
package session

import (
	"errors"
	"time"

	"neurochat/internal/hexid"
	"neurochat/internal/logger"
	"neurochat/internal/provider"
)

var (
	// ErrNotRetrying is returned by retry operations when no retry sub-session is open.
	ErrNotRetrying = errors.New("not currently in retry mode")
	// ErrAlreadyRetrying is returned when entering retry while a sub-session is open.
	ErrAlreadyRetrying = errors.New("already in retry mode; apply or cancel first")
	// ErrAttemptNotFound is returned for unknown attempt identifiers.
	ErrAttemptNotFound = errors.New("attempt id not found")
)

// State is owned by one open chat session and passed by reference to the orchestrator
// and command handlers. It is not safe for concurrent use; the REPL processes one
// action at a time.
type State struct {
	currentProvider string
	currentModel    string
	helperProvider  string
	helperModel     string
	timeout         time.Duration

	secretMode bool
	searchMode bool
	retry      *RetrySession

	ids       *hexid.Registry
	providers *provider.Cache
	now       func() time.Time
}

// Options configures a new State.
type Options struct {
	Provider       string
	Model          string
	HelperProvider string
	HelperModel    string
	Timeout        time.Duration
	Registry       *hexid.Registry
	Providers      *provider.Cache
	Now            func() time.Time
}

// New creates session state. Missing registry, cache or clock get defaults.
func New(opts Options) *State {
	s := &State{
		currentProvider: opts.Provider,
		currentModel:    opts.Model,
		helperProvider:  opts.HelperProvider,
		helperModel:     opts.HelperModel,
		timeout:         opts.Timeout,
		ids:             opts.Registry,
		providers:       opts.Providers,
		now:             opts.Now,
	}
	if s.ids == nil {
		s.ids = hexid.NewRegistry()
	}
	if s.providers == nil {
		s.providers = provider.NewCache(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.helperProvider == "" {
		s.helperProvider, s.helperModel = s.currentProvider, s.currentModel
	}
	return s
}

// Registry returns the session's hex id registry.
func (s *State) Registry() *hexid.Registry {
	return s.ids
}

// Providers returns the session's provider client cache.
func (s *State) Providers() *provider.Cache {
	return s.providers
}

// Now returns the session clock's current time.
func (s *State) Now() time.Time {
	return s.now()
}

// Current returns the active provider target.
func (s *State) Current() provider.Target {
	return provider.Target{Provider: s.currentProvider, Model: s.currentModel, Timeout: s.timeout}
}

// Helper returns the provider target for auxiliary tasks such as summarization.
func (s *State) Helper() provider.Target {
	return provider.Target{Provider: s.helperProvider, Model: s.helperModel, Timeout: s.timeout}
}

// Timeout returns the effective request timeout.
func (s *State) Timeout() time.Duration {
	return s.timeout
}

// SetModel switches the active provider and model. Cached clients are evicted on change.
func (s *State) SetModel(providerName, model string) {
	if providerName == s.currentProvider && model == s.currentModel {
		return
	}
	s.currentProvider, s.currentModel = providerName, model
	s.providers.Invalidate()
	logger.Debug("Active model changed", "provider", providerName, "model", model)
}

// SetHelperModel switches the helper provider and model. Cached clients are evicted on change.
func (s *State) SetHelperModel(providerName, model string) {
	if providerName == s.helperProvider && model == s.helperModel {
		return
	}
	s.helperProvider, s.helperModel = providerName, model
	s.providers.Invalidate()
	logger.Debug("Helper model changed", "provider", providerName, "model", model)
}

// SetTimeout changes the request timeout. Cached clients are evicted on change.
func (s *State) SetTimeout(timeout time.Duration) {
	if timeout == s.timeout {
		return
	}
	s.timeout = timeout
	s.providers.Invalidate()
	logger.Debug("Request timeout changed", "timeout", timeout)
}

// SecretMode reports whether sends bypass transcript persistence.
func (s *State) SecretMode() bool {
	return s.secretMode
}

// SearchMode reports whether sends ask the provider for web search augmentation.
func (s *State) SearchMode() bool {
	return s.searchMode
}

// ToggleSecret flips secret mode and returns the new value.
func (s *State) ToggleSecret() bool {
	s.secretMode = !s.secretMode
	return s.secretMode
}

// ToggleSearch flips search mode and returns the new value.
func (s *State) ToggleSearch() bool {
	s.searchMode = !s.searchMode
	return s.searchMode
}

// SwitchChat drops all chat-scoped state: both toggles, any retry sub-session and
// every issued hex id. Model selection and the provider cache survive.
func (s *State) SwitchChat() {
	s.secretMode = false
	s.searchMode = false
	s.retry = nil
	s.ids.Reset()
	logger.Debug("Chat-scoped session state cleared")
}
