package config_test

import (
	"testing"
	"time"

	"fulfillment/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_defaults(t *testing.T) {
	cfg, err := config.FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.PostgresURL)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoffBase)
	assert.Equal(t, 5, cfg.TimeoutDelayTier)
	assert.Equal(t, time.Minute, cfg.PaymentWindow())
	assert.Equal(t, "fulfillment.order-timeout-consumer", cfg.ConsumerGroups.OrderTimeout)
	assert.Equal(t, "fulfillment.email-service-request-consumer", cfg.ConsumerGroups.Email)

	for _, component := range []string{config.ComponentOrders, config.ComponentInventory, config.ComponentNotifications, config.ComponentEmail} {
		assert.True(t, cfg.Runs(component), component)
	}

	require.Len(t, cfg.InventorySeed, 3)
	assert.EqualValues(t, 1001, cfg.InventorySeed[2].ProductID)
	assert.Equal(t, 50, cfg.InventorySeed[2].Quantity)
	assert.Equal(t, "99.99", cfg.InventorySeed[0].Price.StringFixed(2))

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.Backoff(2))
}

func TestFromEnv_overrides(t *testing.T) {
	cfg, err := config.FromEnv(envMap(map[string]string{
		"LOG_LEVEL":                    "debug",
		"SERVICE_COMPONENTS":           "orders, inventory,orders",
		"CONSUMER_GROUP_PREFIX":        "test",
		"CONSUMER_GROUP_EMAIL":         "mailer",
		"RETRY_MAX_ATTEMPTS":           "5",
		"RETRY_BACKOFF_BASE":           "10ms",
		"DELAY_TIERS":                  "10ms 20ms",
		"ORDER_TIMEOUT_DELAY_TIER":     "2",
		"INVENTORY_SEED":               "7:1:2.50",
		"EMAIL_RATE_PER_SECOND":        "2",
		"MAIL_DEFAULT_RECIPIENT":       "ops@example.com",
		"POSTGRES_URL":                 "postgres://localhost/fulfillment",
		"CONSUMER_GROUP_ORDER_TIMEOUT": "",
	}))
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"orders", "inventory"}, cfg.Components)
	assert.False(t, cfg.Runs(config.ComponentEmail))
	assert.Equal(t, "test.order-timeout-consumer", cfg.ConsumerGroups.OrderTimeout)
	assert.Equal(t, "mailer", cfg.ConsumerGroups.Email)
	assert.Equal(t, 20*time.Millisecond, cfg.PaymentWindow())
	assert.EqualValues(t, 2, cfg.EmailRatePerSecond)
	assert.Equal(t, "ops@example.com", cfg.MailDefaultRecipient)
	require.Len(t, cfg.InventorySeed, 1)
	assert.Equal(t, "2.50", cfg.InventorySeed[0].Price.StringFixed(2))
}

func TestFromEnv_invalid(t *testing.T) {
	testCases := map[string]map[string]string{
		"retry_attempts":   {"RETRY_MAX_ATTEMPTS": "many"},
		"zero_attempts":    {"RETRY_MAX_ATTEMPTS": "0"},
		"backoff":          {"RETRY_BACKOFF_BASE": "soon"},
		"tier_range":       {"ORDER_TIMEOUT_DELAY_TIER": "19"},
		"tiers":            {"DELAY_TIERS": "1s later"},
		"components":       {"SERVICE_COMPONENTS": "orders,billing"},
		"seed_format":      {"INVENTORY_SEED": "1:100"},
		"seed_price":       {"INVENTORY_SEED": "1:100:cheap"},
		"seed_quantity":    {"INVENTORY_SEED": "1:-1:1.00"},
		"log_level":        {"LOG_LEVEL": "loud"},
		"email_rate_limit": {"EMAIL_RATE_PER_SECOND": "0"},
	}

	for name, env := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}

func envMap(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}
