package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillment/entities"
	"fulfillment/message/delay"
	"fulfillment/pkg/retry"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	ComponentOrders        = "orders"
	ComponentInventory     = "inventory"
	ComponentNotifications = "notifications"
	ComponentEmail         = "email"
)

var allComponents = []string{ComponentOrders, ComponentInventory, ComponentNotifications, ComponentEmail}

const defaultInventorySeed = "1:100:99.99,2:200:199.99,1001:50:0.00"

type ConsumerGroups struct {
	OrderTimeout               string
	InventoryDeduct            string
	InventoryRestore           string
	NotificationConfirmation   string
	NotificationPaymentSuccess string
	NotificationTimeout        string
	Email                      string
}

type Config struct {
	HTTPAddr   string
	LogLevel   logrus.Level
	Components []string

	RedisAddr   string
	PostgresURL string

	ConsumerGroups ConsumerGroups

	RetryMaxAttempts int
	RetryBackoffBase time.Duration

	TimeoutDelayTier  int
	DelayTiers        delay.Tiers
	DelayPollInterval time.Duration

	MailServiceURL       string
	MailDefaultRecipient string
	EmailRatePerSecond   int64

	InventorySeed []entities.InventoryRecord

	JaegerEndpoint string
}

// Load reads the configuration from the environment, after loading .env if present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("could not load .env: %w", err)
	}

	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	env := environment{getenv: getenv}

	prefix := env.get("CONSUMER_GROUP_PREFIX", "fulfillment")
	group := func(key, name string) string {
		return env.get(key, prefix+"."+name)
	}

	cfg := Config{
		HTTPAddr:    env.get("HTTP_ADDR", ":8080"),
		RedisAddr:   env.get("REDIS_ADDR", "localhost:6379"),
		PostgresURL: env.get("POSTGRES_URL", ""),
		ConsumerGroups: ConsumerGroups{
			OrderTimeout:               group("CONSUMER_GROUP_ORDER_TIMEOUT", "order-timeout-consumer"),
			InventoryDeduct:            group("CONSUMER_GROUP_INVENTORY_DEDUCT", "inventory-deduct-consumer"),
			InventoryRestore:           group("CONSUMER_GROUP_INVENTORY_RESTORE", "inventory-restore-consumer"),
			NotificationConfirmation:   group("CONSUMER_GROUP_NOTIFICATION_CONFIRMATION", "notification-confirmation"),
			NotificationPaymentSuccess: group("CONSUMER_GROUP_NOTIFICATION_PAYMENT_SUCCESS", "notification-payment-success"),
			NotificationTimeout:        group("CONSUMER_GROUP_NOTIFICATION_TIMEOUT", "notification-timeout-cancellation"),
			Email:                      group("CONSUMER_GROUP_EMAIL", "email-service-request-consumer"),
		},
		MailServiceURL:       env.get("MAIL_SERVICE_URL", "http://localhost:8081"),
		MailDefaultRecipient: env.get("MAIL_DEFAULT_RECIPIENT", "customer@example.com"),
		JaegerEndpoint:       env.get("JAEGER_ENDPOINT", ""),
	}

	cfg.LogLevel = env.logLevel("LOG_LEVEL", logrus.InfoLevel)
	cfg.Components = env.components("SERVICE_COMPONENTS")
	cfg.RetryMaxAttempts = env.int("RETRY_MAX_ATTEMPTS", 3)
	cfg.RetryBackoffBase = env.duration("RETRY_BACKOFF_BASE", time.Second)
	cfg.TimeoutDelayTier = env.int("ORDER_TIMEOUT_DELAY_TIER", 5)
	cfg.DelayTiers = env.tiers("DELAY_TIERS", delay.DefaultTiers)
	cfg.DelayPollInterval = env.duration("DELAY_POLL_INTERVAL", 200*time.Millisecond)
	cfg.EmailRatePerSecond = int64(env.int("EMAIL_RATE_PER_SECOND", 10))
	cfg.InventorySeed = env.seed("INVENTORY_SEED", defaultInventorySeed)

	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if _, err := c.DelayTiers.Duration(c.TimeoutDelayTier); err != nil {
		errs = append(errs, fmt.Errorf("ORDER_TIMEOUT_DELAY_TIER: %w", err))
	}
	if c.EmailRatePerSecond < 1 {
		errs = append(errs, errors.New("EMAIL_RATE_PER_SECOND must be at least 1"))
	}

	return errors.Join(errs...)
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Linear(c.RetryMaxAttempts, c.RetryBackoffBase)
}

// PaymentWindow is how long an order may stay unpaid before the timeout check cancels it.
func (c Config) PaymentWindow() time.Duration {
	d, _ := c.DelayTiers.Duration(c.TimeoutDelayTier)
	return d
}

func (c Config) Runs(component string) bool {
	return lo.Contains(c.Components, component)
}

type environment struct {
	getenv func(string) string
	errs   []error
}

func (e *environment) get(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *environment) int(key string, def int) int {
	v := e.get(key, "")
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
	}
	return i
}

func (e *environment) duration(key string, def time.Duration) time.Duration {
	v := e.get(key, "")
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

func (e *environment) logLevel(key string, def logrus.Level) logrus.Level {
	v := e.get(key, "")
	if v == "" {
		return def
	}

	level, err := logrus.ParseLevel(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
	}
	return level
}

func (e *environment) tiers(key, def string) delay.Tiers {
	tiers, err := delay.ParseTiers(e.get(key, def))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
	}
	return tiers
}

func (e *environment) components(key string) []string {
	v := e.get(key, "")
	if v == "" {
		return allComponents
	}

	components := lo.Uniq(lo.Compact(lo.Map(strings.Split(v, ","), func(c string, _ int) string {
		return strings.TrimSpace(c)
	})))

	if unknown, _ := lo.Difference(components, allComponents); len(unknown) > 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: unknown components %v", key, unknown))
	}
	return components
}

// seed parses "productId:quantity:price" triples separated by commas.
func (e *environment) seed(key, def string) []entities.InventoryRecord {
	v := e.get(key, def)

	var records []entities.InventoryRecord
	for _, entry := range lo.Compact(strings.Split(v, ",")) {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			e.errs = append(e.errs, fmt.Errorf("%s: invalid entry %q", key, entry))
			continue
		}

		productID, idErr := strconv.ParseInt(parts[0], 10, 64)
		quantity, qtyErr := strconv.Atoi(parts[1])
		price, priceErr := decimal.NewFromString(parts[2])
		if err := errors.Join(idErr, qtyErr, priceErr); err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: invalid entry %q: %w", key, entry, err))
			continue
		}
		if quantity < 0 {
			e.errs = append(e.errs, fmt.Errorf("%s: negative quantity in %q", key, entry))
			continue
		}

		records = append(records, entities.InventoryRecord{
			ProductID: productID,
			Quantity:  quantity,
			Price:     price,
		})
	}

	return records
}
