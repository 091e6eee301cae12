package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://test.db")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, "Europe/Zurich", cfg.Timezone)
	assert.Empty(t, cfg.Brokers())
}

func TestLoadFailsWithoutRequiredVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.ErrorContains(t, err, "TIMEZONE")
}

func TestBrokersSplitsList(t *testing.T) {
	cfg := Config{KafkaBrokers: "kafka-1:9092, kafka-2:9092,,"}
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
}

func TestDialectorFor(t *testing.T) {
	for _, u := range []string{"postgres://u:p@db:5432/app", "postgresql://db/app", "sqlite://dev.db", "file:dev.db"} {
		_, err := dialectorFor(u)
		assert.NoError(t, err, u)
	}
	_, err := dialectorFor("mysql://db/app")
	assert.Error(t, err)
}

func TestOpenMemoryDBMigrates(t *testing.T) {
	db, err := OpenMemoryDB("config_migrate")
	require.NoError(t, err)
	for _, table := range []string{"users", "restaurants", "menu_items", "orders", "order_items", "vouchers", "loyalty_points", "drivers", "notifications"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, NewLogger("debug", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("nonsense", false).GetLevel())
}
