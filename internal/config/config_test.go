package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_PATH", "DB_MAX_OPEN_CONNS", "ACCRUAL_SCHEDULE", "HTTP_ADDR", "LEDGER_RETRY_ATTEMPTS", "PLANS_FILE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ledger.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, "plans.yaml", cfg.Plans.File)
	assert.Equal(t, "@every 1m", cfg.Accrual.Schedule)
	assert.Equal(t, ":8080", cfg.Http.Addr)
	assert.Equal(t, 3, cfg.Ledger.RetryAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("ACCRUAL_SCHEDULE", "*/5 * * * *")
	t.Setenv("ACCRUAL_TICK_TIMEOUT", "45s")
	t.Setenv("CREATE_DUMMY_USERS", "true")
	t.Setenv("LEDGER_RETRY_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "*/5 * * * *", cfg.Accrual.Schedule)
	assert.Equal(t, 45*time.Second, cfg.Accrual.TickTimeout)
	assert.True(t, cfg.Database.CreateDummyUsers)
	assert.Equal(t, 5, cfg.Ledger.RetryAttempts)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "HTTP_READ_TIMEOUT")
}

func TestGetEnvInt_IgnoresGarbage(t *testing.T) {
	t.Setenv("ACCRUAL_MAX_RETRIES", "many")
	assert.Equal(t, 2, getEnvInt("ACCRUAL_MAX_RETRIES", 2))
}

func TestLoad_FormanceMirror(t *testing.T) {
	t.Setenv("FORMANCE_STACK_URL", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Formance.Enabled())
	assert.Equal(t, "USD/6", cfg.Formance.Asset)

	t.Setenv("FORMANCE_STACK_URL", "https://stack.example.com/api")
	t.Setenv("FORMANCE_LEDGER", "audit")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Formance.Enabled())
	assert.Equal(t, "audit", cfg.Formance.LedgerName)
	assert.Equal(t, "@every 5m", cfg.Formance.Schedule)
}
