package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Mapstructure tags are used to map environment variables and config file keys.
type Config struct {
	// Server Configuration
	ServerAddress      string `mapstructure:"SERVER_ADDRESS"`       // e.g., ":8080"
	AppEnv             string `mapstructure:"APP_ENV"`              // "development" or "production"
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"` // comma separated

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`  // debug, info, warn, error
	LogFormat string `mapstructure:"LOG_FORMAT"` // text or json

	// AI Configuration
	OpenRouterAPIKey  string        `mapstructure:"OPENROUTER_API_KEY"`  // default key for new sessions
	OpenRouterBaseURL string        `mapstructure:"OPENROUTER_BASE_URL"` // chat-completions API root
	GenerationTimeout time.Duration `mapstructure:"GENERATION_TIMEOUT"`  // upper bound for one generation request

	// Project storage
	ProjectsDir string `mapstructure:"PROJECTS_DIR"` // one JSON file per project

	// Deployment Tools Configuration
	GitHubAPIURL   string `mapstructure:"GITHUB_API_URL"`
	NetlifyCLIPath string `mapstructure:"NETLIFY_CLI_PATH"` // empty means simulated deploys
	VercelCLIPath  string `mapstructure:"VERCEL_CLI_PATH"`  // empty means simulated deploys

	// Editor defaults for new sessions
	EditorTheme    string `mapstructure:"EDITOR_THEME"`
	EditorFontSize int    `mapstructure:"EDITOR_FONT_SIZE"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":       ":8080",
	"APP_ENV":              "development",
	"CORS_ALLOWED_ORIGINS": "http://localhost:3000",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "text",
	"OPENROUTER_API_KEY":   "",
	"OPENROUTER_BASE_URL":  "https://openrouter.ai/api/v1",
	"GENERATION_TIMEOUT":   "120s",
	"PROJECTS_DIR":         "projects",
	"GITHUB_API_URL":       "https://api.github.com",
	"NETLIFY_CLI_PATH":     "",
	"VERCEL_CLI_PATH":      "",
	"EDITOR_THEME":         "vs-dark",
	"EDITOR_FONT_SIZE":     14,
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)     // Path to look for the config file in
	v.SetConfigName("config") // Name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	// AutomaticEnv only reaches keys viper already knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Info("config file not found, relying on environment variables", slog.String("path", path))
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		slog.Info("using configuration file", slog.String("file", v.ConfigFileUsed()))
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	if config.OpenRouterAPIKey == "" {
		slog.Warn("OPENROUTER_API_KEY is not set; sessions must supply their own key")
	}

	return config, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerAddress, validation.Required),
		validation.Field(&c.OpenRouterBaseURL, validation.Required),
		validation.Field(&c.ProjectsDir, validation.Required),
		validation.Field(&c.GenerationTimeout, validation.Required),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.EditorFontSize, validation.Min(10), validation.Max(20)),
	)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into a list.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV selects release mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
