package plans

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
version: 4
plans:
  - id: professional
    name: Professional Plan
    min_amount: "1000"
    max_amount: "9999"
    profit_percent: "30"
    cycle: 72h
    maturity: 720h
  - id: open-ended
    min_amount: "50000"
    profit_percent: "12.5"
    cycle: 24h
    maturity: 240h
`

func TestParse(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, 4, catalog.Version())
	require.Len(t, catalog.List(), 2)

	pro, err := catalog.Get("professional")
	require.NoError(t, err)
	assert.Equal(t, "Professional Plan", pro.Name)
	assert.Equal(t, 4, pro.Version)
	assert.True(t, pro.MinAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, pro.MaxAmount.Valid)
	assert.True(t, pro.MaxAmount.Decimal.Equal(decimal.NewFromInt(9999)))
	assert.Equal(t, 72*time.Hour, pro.CycleLength)
	assert.Equal(t, 720*time.Hour, pro.Maturity)

	open, err := catalog.Get("open-ended")
	require.NoError(t, err)
	assert.Equal(t, "open-ended", open.Name)
	assert.False(t, open.MaxAmount.Valid)
	assert.True(t, open.InRange(decimal.NewFromInt(10_000_000)))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no version", "plans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 1h, maturity: 1h}"},
		{"no plans", "version: 1\nplans: []"},
		{"missing id", "version: 1\nplans:\n  - {min_amount: '1', profit_percent: '1', cycle: 1h, maturity: 1h}"},
		{"bad min", "version: 1\nplans:\n  - {id: a, min_amount: 'x', profit_percent: '1', cycle: 1h, maturity: 1h}"},
		{"max below min", "version: 1\nplans:\n  - {id: a, min_amount: '10', max_amount: '5', profit_percent: '1', cycle: 1h, maturity: 1h}"},
		{"zero profit", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '0', cycle: 1h, maturity: 1h}"},
		{"bad cycle", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: soon, maturity: 1h}"},
		{"sub-minute cycle", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 1ns, maturity: 1h}"},
		{"zero cycle", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 0s, maturity: 1h}"},
		{"maturity shorter than cycle", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 2h, maturity: 1h}"},
		{"duplicate id", "version: 1\nplans:\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 1h, maturity: 1h}\n  - {id: a, min_amount: '1', profit_percent: '1', cycle: 1h, maturity: 1h}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGet_UnknownPlan(t *testing.T) {
	_, err := Default().Get("platinum")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDefault_ProfessionalBounds(t *testing.T) {
	pro, err := Default().Get("professional")
	require.NoError(t, err)

	assert.True(t, pro.InRange(decimal.NewFromInt(1000)))
	assert.True(t, pro.InRange(decimal.NewFromInt(9999)))
	assert.False(t, pro.InRange(decimal.RequireFromString("999.99")))
	assert.False(t, pro.InRange(decimal.RequireFromString("9999.01")))
	assert.True(t, pro.ProfitPercent.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 72*time.Hour, pro.CycleLength)
}

func TestGet_ReturnsCopy(t *testing.T) {
	catalog := Default()
	plan, err := catalog.Get("starter")
	require.NoError(t, err)

	plan.ProfitPercent = decimal.NewFromInt(99)

	again, err := catalog.Get("starter")
	require.NoError(t, err)
	assert.True(t, again.ProfitPercent.Equal(decimal.NewFromInt(10)))
}

func TestForAmount(t *testing.T) {
	got := Default().ForAmount(decimal.NewFromInt(1500))
	require.Len(t, got, 1)
	assert.Equal(t, "professional", got[0].Id)

	assert.Empty(t, Default().ForAmount(decimal.NewFromInt(50)))
}

func TestLoadOrDefault(t *testing.T) {
	catalog, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Version())

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))
	catalog, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, 4, catalog.Version())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: [oops"), 0o600))
	_, err = LoadOrDefault(bad)
	assert.Error(t, err)
}
