package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreds(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "alice:secret, bob : hunter2"}

	creds, err := cfg.parseCreds()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "secret", "bob": "hunter2"}, creds)
}

func TestParseCredsEmpty(t *testing.T) {
	cfg := &Config{}

	_, err := cfg.parseCreds()
	assert.Error(t, err)
}

func TestParseCredsMalformed(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "alice"}

	_, err := cfg.parseCreds()
	assert.Error(t, err)
}

func TestMailgunEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.MailgunEnabled())

	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key"
	assert.False(t, cfg.MailgunEnabled(), "recipient is required")

	cfg.Mailgun.Recipient = "me@example.com"
	assert.True(t, cfg.MailgunEnabled())
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/feedwatch"}
	assert.Equal(t, "/tmp/feedwatch/feeds.json", cfg.SavePath())
	assert.Equal(t, "/tmp/feedwatch/config.json", cfg.SettingsPath())
}

func TestSettingsDurations(t *testing.T) {
	s := &Settings{HTTPTimeoutSecs: 30, AutoRefreshMins: 15, CacheDurationMins: 60}
	assert.Equal(t, "30s", s.HTTPTimeout().String())
	assert.Equal(t, "15m0s", s.AutoRefreshInterval().String())
	assert.Equal(t, "1h0m0s", s.CacheTTL().String())
}
