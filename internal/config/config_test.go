package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, CartStoreMemory, cfg.CartStore)
	assert.Equal(t, 10*time.Second, cfg.RetailAPITimeout)
	assert.Equal(t, "1", cfg.DefaultStoreID)
	assert.True(t, decimal.NewFromInt(500).Equal(cfg.FreeDeliveryThreshold))
	assert.True(t, decimal.NewFromInt(30).Equal(cfg.DeliveryFee))
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("CART_STORE", "postgres")
	t.Setenv("RETAIL_API_TIMEOUT", "2s")
	t.Setenv("DELIVERY_FEE", "45.50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, CartStorePostgres, cfg.CartStore)
	assert.Equal(t, 2*time.Second, cfg.RetailAPITimeout)
	assert.True(t, decimal.RequireFromString("45.5").Equal(cfg.DeliveryFee))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown cart store": {"CART_STORE": "redis"},
		"bad fee":            {"DELIVERY_FEE": "thirty"},
		"negative threshold": {"FREE_DELIVERY_THRESHOLD": "-1"},
		"zero shutdown":      {"SHUTDOWN_TIMEOUT_SECONDS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromViper(viper.New())
			assert.Error(t, err)
		})
	}
}
