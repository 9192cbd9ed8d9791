package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Model providers.
const (
	ModelProviderNone   = "none"
	ModelProviderOpenAI = "openai"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Registry RegistryConfig    `yaml:"registry"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Annotate AnnotateConfig    `yaml:"annotate"`
	Model    ModelConfig       `yaml:"model"`
	Filter   FilterConfig      `yaml:"filter"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Annotate.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RegistryConfig holds the template registry source.
//
// Path points at a YAML registry file. When empty, the built-in
// registry is used. Watch enables hot reload of the file on change.
type RegistryConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	if c.Watch && c.Path == "" {
		return fmt.Errorf("registry: watch requires a path")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AnnotateConfig holds defaults for annotation runs.
type AnnotateConfig struct {
	NoteMode       string `yaml:"note_mode"`
	ValidationMode string `yaml:"validation_mode"`
	Concurrency    int    `yaml:"concurrency"`
}

// Validate validates the annotate configuration.
func (c *AnnotateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NoteMode, validation.Required, validation.In("template_only", "model", "two_stage")),
		validation.Field(&c.ValidationMode, validation.Required, validation.In("v1", "v2_strict")),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// ModelConfig holds the note model client configuration.
//
// Provider controls which client is wired:
//   - "none" (default): no model; model and two_stage runs fall back to templates.
//   - "openai": OpenAI chat completions; APIKey must be non-empty.
type ModelConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the model configuration.
func (c *ModelConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ModelProviderNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ModelProviderNone, ModelProviderOpenAI)),
	); err != nil {
		return err
	}
	if c.Provider == ModelProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("model: provider is %q but api_key is empty", ModelProviderOpenAI)
	}
	return nil
}

// FilterConfig holds the candidate quality policy source. When Path is
// empty the built-in policy is used.
type FilterConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Annotate: AnnotateConfig{
			NoteMode:       "template_only",
			ValidationMode: "v2_strict",
			Concurrency:    8,
		},
		Model: ModelConfig{
			Provider: ModelProviderNone,
			Timeout:  5 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
