// Package catalog lists the models neurochat knows about for each provider.
// The list is advisory: any model name a provider accepts can still be selected.
package catalog

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelData []byte

// Model describes one catalog entry.
type Model struct {
	Name          string   `yaml:"name"`
	DisplayName   string   `yaml:"display_name"`
	ContextWindow int      `yaml:"context_window"`
	Capabilities  []string `yaml:"capabilities"`
	Deprecated    bool     `yaml:"deprecated,omitempty"`
}

// HasCapability reports whether the model lists capability.
func (m Model) HasCapability(capability string) bool {
	return slices.Contains(m.Capabilities, capability)
}

// Catalog maps provider names to their models.
type Catalog struct {
	Providers map[string][]Model `yaml:"providers"`
}

var (
	builtin     *Catalog
	builtinErr  error
	builtinOnce sync.Once
)

// Builtin returns the embedded catalog.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Parse(modelData)
	})
	return builtin, builtinErr
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	for provider, models := range c.Providers {
		for i, m := range models {
			if m.Name == "" {
				return nil, fmt.Errorf("model catalog: %s entry %d has no name", provider, i)
			}
		}
	}
	return &c, nil
}

// ProviderNames returns the catalog's providers in order.
func (c *Catalog) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the entries for provider.
func (c *Catalog) Models(provider string) []Model {
	return c.Providers[strings.ToLower(provider)]
}

// Lookup finds model under provider.
func (c *Catalog) Lookup(provider, model string) (Model, bool) {
	for _, m := range c.Models(provider) {
		if m.Name == model {
			return m, true
		}
	}
	return Model{}, false
}

// Check returns a warning for a model choice the catalog does not vouch for, or "".
func (c *Catalog) Check(provider, model string) string {
	m, ok := c.Lookup(provider, model)
	switch {
	case !ok:
		return fmt.Sprintf("%s is not in the %s catalog; requests may fail", model, provider)
	case m.Deprecated:
		return fmt.Sprintf("%s is deprecated", model)
	default:
		return ""
	}
}
