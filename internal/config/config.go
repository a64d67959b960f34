package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for fts, stored in ~/.fts/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	API       APIConfig       `json:"api"`
	Timesheet TimesheetConfig `json:"timesheet"`
	// Timezone is the IANA timezone trip dates are read in.
	Timezone string `json:"timezone"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// APIConfig holds fleet backend connection settings.
type APIConfig struct {
	// BaseURL is the API root; every endpoint path is appended to it.
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds a single HTTP attempt.
	TimeoutSeconds int `json:"timeout_seconds"`
	// MaxRetries is the number of retries after a failed read request.
	MaxRetries int `json:"max_retries"`
	// VehiclesCacheTTLSeconds is how long the vehicle list is served from
	// the session cache.
	VehiclesCacheTTLSeconds int `json:"vehicles_cache_ttl_seconds"`
}

// TimesheetConfig holds timesheet drafting settings.
type TimesheetConfig struct {
	// WindowDays is how many days back from today trips are loaded.
	WindowDays int `json:"window_days"`
}

const (
	DefaultBaseURL          = "https://cartrack.codebnn.com/api"
	DefaultTimeoutSeconds   = 30
	DefaultMaxRetries       = 3
	DefaultVehiclesCacheTTL = 900
	DefaultWindowDays       = 7
	DefaultTimezone         = "Pacific/Auckland"
	DefaultLogLevel         = "info"
)

// Timeout returns the per-attempt HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VehiclesCacheTTL returns the vehicle cache lifetime.
func (c APIConfig) VehiclesCacheTTL() time.Duration {
	return time.Duration(c.VehiclesCacheTTLSeconds) * time.Second
}

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:                 DefaultBaseURL,
			TimeoutSeconds:          DefaultTimeoutSeconds,
			MaxRetries:              DefaultMaxRetries,
			VehiclesCacheTTLSeconds: DefaultVehiclesCacheTTL,
		},
		Timesheet: TimesheetConfig{WindowDays: DefaultWindowDays},
		Timezone:  DefaultTimezone,
		LogLevel:  DefaultLogLevel,
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// fts configuration – ~/.fts/config.json
//
// All settings are optional; missing values fall back to the
// built-in defaults shown below.
{
  // ── Fleet backend ────────────────────────────────────────────────────────
  "api": {
    // Root URL of the fleet API. Override per shell with FTS_API_URL.
    "base_url": "https://cartrack.codebnn.com/api",

    // Timeout for a single HTTP attempt, in seconds.
    "timeout_seconds": 30,

    // Retries after a failed read request. Waits 1s, 2s, 3s ... between tries.
    "max_retries": 3,

    // Seconds the vehicle list is served from the session cache.
    "vehicles_cache_ttl_seconds": 900
  },

  // ── Timesheets ───────────────────────────────────────────────────────────
  "timesheet": {
    // Days of trip history loaded when drafting a timesheet.
    "window_days": 7
  },

  // IANA timezone trip dates and times are shown in.
  "timezone": "Pacific/Auckland",

  // debug, info, warn or error. Override per shell with LOG_LEVEL.
  "log_level": "info"
}
`

// FilePath returns the path to ~/.fts/config.json.
func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".fts", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.fts/config.json and applies environment overrides.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return Default(), err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, creating it with annotated defaults on
// first run. FTS_API_URL and LOG_LEVEL override the file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return applyEnv(Default()), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cleaned := stripLineComments(data)
	// Decode over the defaults so keys absent from the file keep them.
	cfg := Default()
	if err := json.Unmarshal(cleaned, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	// Blank or out-of-range values fall back to the built-in defaults.
	def := Default()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if cfg.API.MaxRetries < 0 {
		cfg.API.MaxRetries = def.API.MaxRetries
	}
	if cfg.API.VehiclesCacheTTLSeconds <= 0 {
		cfg.API.VehiclesCacheTTLSeconds = def.API.VehiclesCacheTTLSeconds
	}
	if cfg.Timesheet.WindowDays <= 0 {
		cfg.Timesheet.WindowDays = def.Timesheet.WindowDays
	}
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	return applyEnv(cfg), nil
}

// applyEnv lets FTS_API_URL and LOG_LEVEL override file values.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("FTS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
