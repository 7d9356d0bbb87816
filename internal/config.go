package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taxon/internal/tagservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Seed   SeedConfig        `yaml:"seed"`
	Tags   TagsConfig        `yaml:"tags"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	return c.Tags.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required, validation.Match(metricsPathRe).Error("must start with /")),
	)
}

var metricsPathRe = regexp.MustCompile(`^/\S*$`)

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

// SeedConfig points at an optional YAML file of vocabularies applied at
// startup. With Watch set the file is re-applied whenever it changes.
type SeedConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	if c.Watch && c.Path == "" {
		return fmt.Errorf("seed: watch is enabled but path is empty")
	}
	return nil
}

// TagsConfig holds dataset tagging configuration.
type TagsConfig struct {
	// VocabularyFields maps a dataset field to the vocabulary its tag
	// string is converted into.
	VocabularyFields map[string]string `yaml:"vocabulary_fields"`
	// EventsThrottle is the minimum interval between tags.updated events of
	// one vocabulary.
	EventsThrottle time.Duration `yaml:"events_throttle"`
	// VocabularyCache is the number of vocabulary name lookups kept in
	// memory; 0 disables the cache.
	VocabularyCache int `yaml:"vocabulary_cache"`
}

// Validate validates the tags configuration.
func (c *TagsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.EventsThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.VocabularyCache, validation.Min(0)),
	); err != nil {
		return err
	}
	for field, vocab := range c.VocabularyFields {
		if field == "" || vocab == "" {
			return fmt.Errorf("tags: vocabulary field %q has an empty name or vocabulary", field)
		}
		if slices.Contains(tagservice.ReservedFields, field) {
			return fmt.Errorf("tags: field %q is reserved", field)
		}
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./taxon.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Tags: TagsConfig{
			EventsThrottle:  2 * time.Second,
			VocabularyCache: 256,
		},
	}
}
