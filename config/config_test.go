package config_test

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-escrow/config"
	"github.com/goliatone/go-escrow/ephemeral"
	"github.com/goliatone/go-escrow/telegram"
)

func loadAppJSON(t *testing.T) config.BaseConfig {
	t.Helper()
	raw, err := os.ReadFile("app.json")
	require.NoError(t, err)

	var cfg config.BaseConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	return cfg
}

func TestAppJSONIsValid(t *testing.T) {
	cfg := loadAppJSON(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8572", cfg.GetServer().GetAddress())
	assert.Equal(t, 10*time.Second, cfg.GetServer().GetShutdownTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetEscrow().GetNotificationTimeout())
	assert.Equal(t, escrow.JoinLimit{PerMinute: 10, Burst: 5}, cfg.GetEscrow().GetJoinLimit())
	assert.Equal(t, 300*time.Second, cfg.GetTokens().GetTTL())
	assert.Equal(t, 24*time.Hour, cfg.GetTelegram().GetSessionTTL())
}

func TestAuthImplementsEscrowConfig(t *testing.T) {
	var c escrow.Config = loadAppJSON(t).GetAuth()

	assert.Equal(t, "HS256", c.GetSigningMethod())
	assert.Equal(t, "user", c.GetContextKey())
	assert.Equal(t, 24, c.GetTokenExpiration())
	assert.Equal(t, []string{"escrow:api"}, c.GetAudience())
}

func TestDurationDefaults(t *testing.T) {
	var cfg config.BaseConfig

	assert.Equal(t, escrow.DefaultNotificationTimeout, cfg.GetEscrow().GetNotificationTimeout())
	assert.Equal(t, ephemeral.DefaultTTL, cfg.GetTokens().GetTTL())
	assert.Equal(t, ephemeral.DefaultSweepInterval, cfg.GetTokens().GetSweepInterval())
	assert.Equal(t, telegram.DefaultSessionTTL, cfg.GetTelegram().GetSessionTTL())
	assert.Equal(t, telegram.DefaultSessionSweepInterval, cfg.GetTelegram().GetSweepInterval())
	assert.Equal(t, 5*time.Second, cfg.GetPersistence().GetPingTimeout())
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*config.BaseConfig){
		"short signing key": func(c *config.BaseConfig) { c.Auth.SigningKey = "short" },
		"unknown method":    func(c *config.BaseConfig) { c.Auth.SigningMethod = "none" },
		"bad duration":      func(c *config.BaseConfig) { c.Tokens.TTLExpression = "five minutes" },
		"missing dsn":       func(c *config.BaseConfig) { c.Persistence.DSN = "" },
		"negative burst":    func(c *config.BaseConfig) { c.Escrow.JoinBurst = -1 },
		"telegram without token": func(c *config.BaseConfig) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = ""
		},
		"metrics without address": func(c *config.BaseConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := loadAppJSON(t)
			mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			assert.Equal(t, goerrors.CategoryValidation, rich.Category)
		})
	}
}

func TestTelegramEnabledWithCredentials(t *testing.T) {
	cfg := loadAppJSON(t)
	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken = "123:abc"

	require.NoError(t, cfg.Validate())
}
