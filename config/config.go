package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	DataDir        string `env:"DATA_DIR"`
	CacheDir       string `env:"CACHE_DIR"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	Mailgun        struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		Recipient   string `env:"MAILGUN_RECIPIENT"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panicf("failed to parse environment: %s", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDir(os.UserConfigDir, "feedwatch")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(defaultDir(os.UserCacheDir, "feedwatch"), "feed_cache")
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		cfg.log.Sugar().Infof("%s (API auth is disabled)", err)
		creds = nil
	}
	cfg.creds = creds

	return cfg
}

// defaultDir resolves a per-user directory, falling back to the working
// directory when the platform dir cannot be determined.
func defaultDir(base func() (string, error), name string) string {
	root, err := base()
	if err != nil {
		root = "."
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "."
	}
	return dir
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) MailgunEnabled() bool {
	return cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != "" && cfg.Mailgun.Recipient != ""
}

func (cfg *Config) SavePath() string {
	return filepath.Join(cfg.DataDir, "feeds.json")
}

func (cfg *Config) SettingsPath() string {
	return filepath.Join(cfg.DataDir, "config.json")
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar is not populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	if len(creds) == 0 {
		return nil, errors.New("BASIC_AUTH_CREDS envvar should be filled with comma-separated values -- user1:pass1,user2:pass2")
	}

	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
