package driving

import "github.com/custodia-labs/devrag-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, applying defaults and
	// environment overrides.
	Get() (*domain.AppSettings, error)

	// Set stores one raw configuration value by dotted key and persists it.
	Set(key string, value string) error

	// List returns every explicitly configured key with its value.
	// Secret values are masked.
	List() map[string]string

	// Validate checks the current settings. Failures are ConfigurationErrors.
	Validate() error

	// ValidateLLM checks that a generation provider is configured.
	ValidateLLM() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig pings the configured LLM provider.
	ValidateLLMConfig() error
}
