package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/edrak/internal/assist"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Workspace persistence backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Assist    AssistConfig      `yaml:"assist"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Workspace, &c.SQLite, &c.Auth, &c.Assist} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// WorkspaceConfig selects where the workspace snapshot lives.
//
// With the file backend the snapshot is DataDir/<Slot>.json and, when Watch
// is set, edits made to that file by other processes are loaded live. With
// the sqlite backend the snapshot is a row of the index database.
// Uploaded images always go to DataDir/attachments.
type WorkspaceConfig struct {
	Backend     string        `yaml:"backend"`
	DataDir     string        `yaml:"data_dir"`
	Slot        string        `yaml:"slot"`
	Watch       bool          `yaml:"watch"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFile, BackendSQLite)),
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.Slot, validation.Required),
		validation.Field(&c.SaveTimeout, validation.Min(time.Duration(0))),
	)
}

// SlotPath returns the snapshot file used by the file backend.
func (c *WorkspaceConfig) SlotPath() string {
	return filepath.Join(c.DataDir, c.Slot+".json")
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

// AssistConfig configures the AI assistant. An empty APIKey keeps the
// service running with assist answering "AI API key missing.".
type AssistConfig struct {
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the assist configuration.
func (c *AssistConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
	)
}

func (c *AssistConfig) options() assist.Config {
	return assist.Config{
		APIKey:   c.APIKey,
		Model:    c.Model,
		Language: c.Language,
		Timeout:  c.Timeout,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
// The assist API key defaults to $GEMINI_API_KEY.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Backend:     BackendFile,
			DataDir:     "./data",
			Slot:        "edrak-storage",
			Watch:       true,
			SaveTimeout: 5 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "./data/edrak.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Assist: AssistConfig{
			APIKey:   os.Getenv("GEMINI_API_KEY"),
			Model:    assist.DefaultModel,
			Language: "English",
			Timeout:  30 * time.Second,
		},
	}
}
