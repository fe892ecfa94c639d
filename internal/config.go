// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sagekb/sage/internal/apperr"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// APIKeyEnv is the environment variable checked first for the synthesizer credential.
const APIKeyEnv = "GEMINI_API_KEY"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Synth     SynthConfig       `yaml:"synth"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Synth.Validate(); err != nil {
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

// WorkspaceConfig holds the path to the document workspace directory.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SynthConfig holds the metadata-extraction collaborator configuration.
//
// APIKey may be left empty in the file; ResolveAPIKey checks the GEMINI_API_KEY
// environment variable first and falls back to this value.
type SynthConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// Validate validates the synthesizer configuration.
func (c *SynthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
	)
}

// ResolveAPIKey returns the synthesizer credential: environment variable
// first, then the configured value. Absence is the one fatal startup error.
func (c *SynthConfig) ResolveAPIKey() (string, error) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	return "", fmt.Errorf("%w: set %s or synth.api_key in the config file", apperr.ErrMissingCredential, APIKeyEnv)
}

// AuthConfig holds authentication configuration for the web boundary.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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
				Port: 8888,
			},
		},
		Workspace: WorkspaceConfig{
			Path: ".",
		},
		Synth: SynthConfig{
			Model: "gemini-2.5-flash",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
