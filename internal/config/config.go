// Package config resolves neurochat settings from defaults, the YAML config file,
// NEUROCHAT_* environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"neurochat/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. NEUROCHAT_MODEL.
const EnvPrefix = "NEUROCHAT"

// Setting keys.
const (
	KeyProvider         = "provider"
	KeyModel            = "model"
	KeyHelperProvider   = "helper.provider"
	KeyHelperModel      = "helper.model"
	KeyTimeout          = "timeout"
	KeyChatDir          = "chat_dir"
	KeyMaxMessages      = "history.max_messages"
	KeyKeepFailedPrompt = "history.keep_failed_prompt"
	KeyRenderMarkdown   = "render.markdown"
	KeyTheme            = "theme"
)

// Config is the resolved configuration.
type Config struct {
	Provider         string
	Model            string
	HelperProvider   string
	HelperModel      string
	Timeout          time.Duration
	ChatDir          string
	MaxMessages      int
	KeepFailedPrompt bool
	RenderMarkdown   bool
	Theme            string
	TestMode         bool
	ConfigFile       string

	dotenv map[string]string
	getenv func(string) string
}

// Options locates configuration sources.
type Options struct {
	// ConfigFile overrides the default $XDG_CONFIG_HOME/neurochat/config.yaml.
	ConfigFile string
	// ConfigDir overrides the neurochat config directory.
	ConfigDir string
	// WorkDir is searched for a local .env file. Empty means the process working directory.
	WorkDir string
	// TestMode selects the offline echo provider and skips .env files.
	TestMode bool
	// Getenv replaces os.Getenv for credential lookups.
	Getenv func(string) string
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/neurochat or its platform equivalent.
func DefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "neurochat"), nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper, configDir string, testMode bool) {
	v.SetDefault(KeyProvider, "openai")
	v.SetDefault(KeyModel, "gpt-4o-mini")
	if testMode {
		v.SetDefault(KeyProvider, "echo")
		v.SetDefault(KeyModel, "echo-1")
	}
	v.SetDefault(KeyHelperProvider, "")
	v.SetDefault(KeyHelperModel, "")
	v.SetDefault(KeyTimeout, "2m")
	v.SetDefault(KeyChatDir, filepath.Join(configDir, "chats"))
	v.SetDefault(KeyMaxMessages, 0)
	v.SetDefault(KeyKeepFailedPrompt, true)
	v.SetDefault(KeyRenderMarkdown, true)
	v.SetDefault(KeyTheme, "dark")
}

// Load resolves configuration into a Config using v, which may already carry
// bound command-line flags.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	SetDefaults(v, configDir, opts.TestMode)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("No config file found", "dir", configDir)
	}

	cfg := &Config{
		Provider:         strings.ToLower(v.GetString(KeyProvider)),
		Model:            v.GetString(KeyModel),
		HelperProvider:   strings.ToLower(v.GetString(KeyHelperProvider)),
		HelperModel:      v.GetString(KeyHelperModel),
		Timeout:          v.GetDuration(KeyTimeout),
		ChatDir:          expandHome(v.GetString(KeyChatDir)),
		MaxMessages:      v.GetInt(KeyMaxMessages),
		KeepFailedPrompt: v.GetBool(KeyKeepFailedPrompt),
		RenderMarkdown:   v.GetBool(KeyRenderMarkdown),
		Theme:            v.GetString(KeyTheme),
		TestMode:         opts.TestMode,
		ConfigFile:       v.ConfigFileUsed(),
		dotenv:           map[string]string{},
		getenv:           opts.Getenv,
	}
	if cfg.getenv == nil {
		cfg.getenv = os.Getenv
	}
	if cfg.HelperProvider == "" {
		cfg.HelperProvider, cfg.HelperModel = cfg.Provider, cfg.Model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !opts.TestMode {
		workDir := opts.WorkDir
		if workDir == "" {
			workDir, _ = os.Getwd()
		}
		for _, dir := range []string{configDir, workDir} {
			if err := cfg.loadDotEnv(filepath.Join(dir, ".env")); err != nil {
				return nil, err
			}
		}
	}

	logger.Debug("Configuration loaded", "provider", cfg.Provider, "model", cfg.Model,
		"timeout", cfg.Timeout, "chat_dir", cfg.ChatDir, "file", cfg.ConfigFile)
	return cfg, nil
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	if c.Provider == "" || c.Model == "" {
		return fmt.Errorf("provider and model must be set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxMessages < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxMessages)
	}
	return nil
}

// loadDotEnv merges a .env file into the credential map. Later files win.
func (c *Config) loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}
	for k, v := range values {
		c.dotenv[k] = v
	}
	logger.Debug("Loaded .env file", "path", path, "keys", len(values))
	return nil
}

func (c *Config) lookup(key string) string {
	if v := c.getenv(key); v != "" {
		return v
	}
	return c.dotenv[key]
}

// KeyNames lists the variables consulted for provider credentials, in priority order.
func KeyNames(providerName string) []string {
	p := strings.ToUpper(providerName)
	return []string{
		fmt.Sprintf("%s_%s_API_KEY", EnvPrefix, p),
		fmt.Sprintf("%s_API_KEY", p),
		EnvPrefix + "_API_KEY",
	}
}

// APIKey resolves the credential for providerName. The offline echo provider needs none.
func (c *Config) APIKey(providerName string) (string, error) {
	if providerName == "echo" {
		return "", nil
	}
	names := KeyNames(providerName)
	for _, name := range names {
		if v := c.lookup(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("API key not configured for provider %s (expected %s or %s)", providerName, names[0], names[1])
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
