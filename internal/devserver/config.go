package devserver

import (
	"strings"

	"github.com/spf13/viper"
)

// DefaultJWTSecret signs tokens when BIBLIO_DEV_JWT_SECRET is unset.
const DefaultJWTSecret = "biblio-dev-secret"

// Config holds the dev server settings. Every field maps to a
// BIBLIO_DEV_<NAME> environment variable.
type Config struct {
	Port         int    `mapstructure:"PORT"`
	Env          string `mapstructure:"ENV"` // development | production
	DatabasePath string `mapstructure:"DATABASE"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	TokenHours   int    `mapstructure:"TOKEN_HOURS"`
	Seed         bool   `mapstructure:"SEED"`
	Prefix       string `mapstructure:"PREFIX"`
}

// LoadConfig reads the environment (and an optional biblio-dev.env file in
// the working directory).
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName("biblio-dev")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BIBLIO_DEV")
	v.AutomaticEnv()

	v.SetDefault("PORT", 5080)
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE", "biblio-dev.db")
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("TOKEN_HOURS", 8)
	v.SetDefault("SEED", true)
	v.SetDefault("PREFIX", "/api")

	// Optional file for local development; missing is fine.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.Port <= 0 {
		c.Port = 5080
	}
	if c.TokenHours <= 0 {
		c.TokenHours = 8
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		c.JWTSecret = DefaultJWTSecret
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = "biblio-dev.db"
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(c.Prefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	c.Prefix = prefix
	return c
}
