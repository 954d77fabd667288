package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	env := "DATABASE_URL=postgres://localhost/delivery\nJWT_SECRET=s3cret\nSHOP_DELIVERY_FEE=25.50\nTIMEZONE=UTC\nKAFKA_BROKERS=k1:9092, k2:9092\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/delivery", cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "order_events", cfg.AMQPExchange)
	assert.True(t, decimal.RequireFromString("25.5").Equal(cfg.DeliveryFee))
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.Empty(t, cfg.SESRecipients())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/delivery")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/delivery", cfg.DatabaseURL)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, log.DEBUG, cfg.GommonLevel())
}

func TestFinishRejectsBadValues(t *testing.T) {
	base := Config{DatabaseURL: "postgres://x", JWTSecret: "s", Timezone: "UTC", ShopDeliveryFee: "0"}

	c := base
	c.JWTSecret = ""
	assert.Error(t, c.finish())

	c = base
	c.ShopDeliveryFee = "-5"
	assert.Error(t, c.finish())

	c = base
	c.Timezone = "Mars/Olympus"
	assert.Error(t, c.finish())

	c = base
	require.NoError(t, c.finish())
	assert.True(t, c.DeliveryFee.IsZero())
}
