package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the client settings.
type Config struct {
	APIURL          string
	RequestTimeout  time.Duration
	SessionPath     string
	LogFile         string
	LogLevel        string
	LoanDays        int
	DefaultLocation string
	RefreshInterval time.Duration
	InsecureTLS     bool
}

const (
	defaultConfigPath      = "~/.config/biblio/config.toml"
	defaultAPIURL          = "https://localhost:7263/api"
	defaultSessionPath     = "~/.config/biblio/session.toml"
	defaultLogFile         = "~/.local/state/biblio/biblio.log"
	defaultLogLevel        = "info"
	defaultLoanDays        = 7
	defaultLocation        = "Reception"
	defaultRequestTimeout  = 10 * time.Second
	defaultRefreshInterval = 30 * time.Second
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:          defaultAPIURL,
		RequestTimeout:  defaultRequestTimeout,
		SessionPath:     mustExpand(defaultSessionPath),
		LogFile:         mustExpand(defaultLogFile),
		LogLevel:        defaultLogLevel,
		LoanDays:        defaultLoanDays,
		DefaultLocation: defaultLocation,
		RefreshInterval: defaultRefreshInterval,
	}
}

// Load reads the config at path (or the default location), falling back to
// defaults for a missing file and for empty values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL          string `toml:"api_url"`
		RequestTimeout  int    `toml:"request_timeout"`
		SessionPath     string `toml:"session_path"`
		LogFile         string `toml:"log_file"`
		LogLevel        string `toml:"log_level"`
		LoanDays        int    `toml:"loan_days"`
		DefaultLocation string `toml:"default_location"`
		RefreshSeconds  int    `toml:"refresh_seconds"`
		InsecureTLS     bool   `toml:"insecure_tls"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if raw.RequestTimeout > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeout) * time.Second
	}
	if v := strings.TrimSpace(raw.SessionPath); v != "" {
		cfg.SessionPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if raw.LoanDays > 0 {
		cfg.LoanDays = raw.LoanDays
	}
	if v := strings.TrimSpace(raw.DefaultLocation); v != "" {
		cfg.DefaultLocation = v
	}
	if raw.RefreshSeconds > 0 {
		cfg.RefreshInterval = time.Duration(raw.RefreshSeconds) * time.Second
	}
	cfg.InsecureTLS = raw.InsecureTLS

	return cfg, nil
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
