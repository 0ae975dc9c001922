package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sekaidex/chapterd/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port              string
	DBPath            string
	DownloadsRoot     string
	MangaDexURL       string
	LogLevel          string
	LogFormat         string
	SaveAsCBZ         bool
	StopOnError       bool
	BlockedScanlators []string
	MadaraSources     []MadaraSource

	madaraErrs []string
}

// MadaraSource configures one scraped source. The env form is
// "id|name|baseURL", with entries separated by commas.
type MadaraSource struct {
	ID      int64
	Name    string
	BaseURL string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	home, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(home, "Downloads/chapterd")

	cfg := &Config{
		Port:              getEnv("PORT", constants.DefaultPort),
		DBPath:            getEnv("DB_PATH", constants.DefaultDBPath),
		DownloadsRoot:     getEnv("DOWNLOADS_ROOT", defaultRoot),
		MangaDexURL:       getEnv("MANGADEX_URL", constants.DefaultMangaDexURL),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		SaveAsCBZ:         getEnvBool("SAVE_AS_CBZ", false),
		StopOnError:       getEnvBool("STOP_ON_ERROR", true),
		BlockedScanlators: getEnvList("BLOCKED_SCANLATORS", "Comikey"),
	}
	cfg.MadaraSources, cfg.madaraErrs = parseMadaraSources(getEnv("MADARA_SOURCES", ""))
	return cfg
}

// parseMadaraSources parses the MADARA_SOURCES env value. Malformed entries
// are reported through Validate, not silently dropped.
func parseMadaraSources(raw string) ([]MadaraSource, []string) {
	if raw == "" {
		return nil, nil
	}
	var sources []MadaraSource
	var errs []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		if len(parts) != 3 {
			errs = append(errs, fmt.Sprintf("MADARA_SOURCES entry %q must be id|name|baseURL", entry))
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("MADARA_SOURCES entry %q has a non-numeric id", entry))
			continue
		}
		name := strings.TrimSpace(parts[1])
		base := strings.TrimSpace(parts[2])
		if name == "" || base == "" {
			errs = append(errs, fmt.Sprintf("MADARA_SOURCES entry %q is missing a name or base URL", entry))
			continue
		}
		if _, err := url.Parse(base); err != nil {
			errs = append(errs, fmt.Sprintf("MADARA_SOURCES entry %q has an invalid base URL", entry))
			continue
		}
		sources = append(sources, MadaraSource{ID: id, Name: name, BaseURL: base})
	}
	return sources, errs
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	// Validate DBPath
	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	// Validate DownloadsRoot
	if c.DownloadsRoot == "" {
		errors = append(errors, "DOWNLOADS_ROOT cannot be empty")
	}

	// Validate MangaDexURL
	if c.MangaDexURL == "" {
		errors = append(errors, "MANGADEX_URL cannot be empty")
	} else {
		if _, err := url.Parse(c.MangaDexURL); err != nil {
			errors = append(errors, fmt.Sprintf("MANGADEX_URL is not a valid URL: %s", c.MangaDexURL))
		}
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	errors = append(errors, c.madaraErrs...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList retrieves a comma-separated environment variable as a slice
func getEnvList(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
