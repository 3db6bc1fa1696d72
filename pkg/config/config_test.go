package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "kafka:9092", want: []string{"kafka:9092"}},
		{name: "spaces and blanks", in: " a:1 , ,b:2 ", want: []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CSV(tt.in))
		})
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SHOP_TEST_INT", "42")
	t.Setenv("SHOP_TEST_BAD_INT", "x")
	t.Setenv("SHOP_TEST_DUR", "250ms")
	t.Setenv("SHOP_TEST_BAD_DUR", "-1s")
	t.Setenv("SHOP_TEST_BOOL", "false")

	assert.Equal(t, 42, EnvIntDefault("SHOP_TEST_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("SHOP_TEST_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, EnvDurationDefault("SHOP_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDurationDefault("SHOP_TEST_BAD_DUR", time.Second))
	assert.Equal(t, "fallback", EnvDefault("SHOP_TEST_MISSING", "fallback"))
	assert.False(t, EnvBoolDefault("SHOP_TEST_BOOL", true))
	assert.True(t, EnvBoolDefault("SHOP_TEST_MISSING", true))
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_TIMEOUT", "2s")

	cfg := Load()
	require.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "file::memory:", cfg.DatabaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.StorageTimeout)
	assert.Equal(t, "order_events", cfg.OrderTopic)
	assert.Equal(t, 8080, cfg.ServerPort)
}
