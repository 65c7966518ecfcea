package config

import (
	"time"

	"github.com/cristalhq/aconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Settings is the user-editable half of configuration, read from
// config.json in the data directory. Unknown keys (themes, keybindings)
// belong to the UI layer and are ignored here.
type Settings struct {
	HTTPTimeoutSecs      int  `json:"http_timeout_secs" default:"30"`
	AutoRefreshMins      int  `json:"auto_refresh_mins" default:"0"`
	CacheDurationMins    int  `json:"cache_duration_mins" default:"60"`
	NotificationsEnabled bool `json:"notifications_enabled" default:"false"`
}

func NewSettings(lc fx.Lifecycle, log *zap.Logger, cfg *Config) *Settings {
	s := &Settings{}
	loader := aconfig.LoaderFor(s, aconfig.Config{
		SkipFlags:          true,
		EnvPrefix:          "FEEDWATCH",
		Files:              []string{cfg.SettingsPath()},
		AllowUnknownFields: true,
		AllowUnknownEnvs:   true,
	})

	if err := loader.Load(); err != nil {
		log.Sugar().Warnf("failed to load settings, using defaults: %s", err)
		*s = Settings{
			HTTPTimeoutSecs:   30,
			CacheDurationMins: 60,
		}
	}

	log.Sugar().Infow("Settings loaded",
		"http_timeout_secs", s.HTTPTimeoutSecs,
		"auto_refresh_mins", s.AutoRefreshMins,
		"cache_duration_mins", s.CacheDurationMins,
		"notifications_enabled", s.NotificationsEnabled,
	)
	return s
}

func (s *Settings) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSecs) * time.Second
}

func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheDurationMins) * time.Minute
}

func (s *Settings) AutoRefreshInterval() time.Duration {
	return time.Duration(s.AutoRefreshMins) * time.Minute
}
