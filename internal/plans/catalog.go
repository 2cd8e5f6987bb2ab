// Package plans loads the investment plan catalog. A Catalog is immutable once
// built; reloading produces a new Catalog with its own version.
package plans

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// MinCycle is the shortest accrual cycle a plan may declare
const MinCycle = time.Minute

type PlanConfig struct {
	Id            string `yaml:"id"`
	Name          string `yaml:"name"`
	MinAmount     string `yaml:"min_amount"`
	MaxAmount     string `yaml:"max_amount"`
	ProfitPercent string `yaml:"profit_percent"`
	Cycle         string `yaml:"cycle"`
	Maturity      string `yaml:"maturity"`
}

type CatalogConfig struct {
	Version int          `yaml:"version"`
	Plans   []PlanConfig `yaml:"plans"`
}

// Catalog is a versioned, read-only set of plans
type Catalog struct {
	version int
	plans   map[string]models.Plan
	order   []string
}

// LoadFile reads a catalog from a YAML file, resolving relative paths against
// the working directory.
func LoadFile(plansFile string) (*Catalog, error) {
	var plansPath string
	if filepath.IsAbs(plansFile) {
		plansPath = plansFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		plansPath = filepath.Join(wd, plansFile)
	}

	data, err := os.ReadFile(plansPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", plansFile, err)
	}

	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", plansFile, err)
	}
	return catalog, nil
}

// LoadOrDefault loads plansFile, falling back to the built-in catalog when the
// file does not exist. Any other read or parse error is returned.
func LoadOrDefault(plansFile string) (*Catalog, error) {
	if plansFile == "" {
		return Default(), nil
	}
	catalog, err := LoadFile(plansFile)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("Plan catalog file not found, using built-in plans", zap.String("file", plansFile))
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("Loaded plan catalog",
		zap.String("file", plansFile),
		zap.Int("version", catalog.Version()),
		zap.Int("plans", len(catalog.order)))
	return catalog, nil
}

// Parse builds a catalog from YAML
func Parse(data []byte) (*Catalog, error) {
	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return FromConfig(config)
}

// FromConfig validates every plan and freezes them into a Catalog
func FromConfig(config CatalogConfig) (*Catalog, error) {
	if config.Version <= 0 {
		return nil, fmt.Errorf("catalog version must be positive, got %d", config.Version)
	}
	if len(config.Plans) == 0 {
		return nil, fmt.Errorf("catalog has no plans")
	}

	catalog := &Catalog{
		version: config.Version,
		plans:   make(map[string]models.Plan, len(config.Plans)),
	}
	for i, pc := range config.Plans {
		plan, err := pc.toPlan(config.Version)
		if err != nil {
			return nil, fmt.Errorf("plan at index %d: %w", i, err)
		}
		if _, dup := catalog.plans[plan.Id]; dup {
			return nil, fmt.Errorf("plan at index %d: duplicate id %q", i, plan.Id)
		}
		catalog.plans[plan.Id] = plan
		catalog.order = append(catalog.order, plan.Id)
	}
	return catalog, nil
}

func (pc PlanConfig) toPlan(version int) (models.Plan, error) {
	id := strings.TrimSpace(pc.Id)
	if id == "" {
		return models.Plan{}, fmt.Errorf("missing id")
	}
	name := pc.Name
	if name == "" {
		name = id
	}

	minAmount, err := decimal.NewFromString(pc.MinAmount)
	if err != nil {
		return models.Plan{}, fmt.Errorf("invalid min_amount %q: %w", pc.MinAmount, err)
	}
	if minAmount.IsNegative() {
		return models.Plan{}, fmt.Errorf("min_amount cannot be negative")
	}

	var maxAmount decimal.NullDecimal
	if pc.MaxAmount != "" {
		maxValue, err := decimal.NewFromString(pc.MaxAmount)
		if err != nil {
			return models.Plan{}, fmt.Errorf("invalid max_amount %q: %w", pc.MaxAmount, err)
		}
		if maxValue.LessThan(minAmount) {
			return models.Plan{}, fmt.Errorf("max_amount %s below min_amount %s", maxValue, minAmount)
		}
		maxAmount = decimal.NewNullDecimal(maxValue)
	}

	profit, err := decimal.NewFromString(pc.ProfitPercent)
	if err != nil {
		return models.Plan{}, fmt.Errorf("invalid profit_percent %q: %w", pc.ProfitPercent, err)
	}
	if !profit.IsPositive() {
		return models.Plan{}, fmt.Errorf("profit_percent must be positive")
	}

	cycle, err := time.ParseDuration(pc.Cycle)
	if err != nil || cycle < MinCycle {
		return models.Plan{}, fmt.Errorf("invalid cycle %q (must be at least %s)", pc.Cycle, MinCycle)
	}
	maturity, err := time.ParseDuration(pc.Maturity)
	if err != nil || maturity < cycle {
		return models.Plan{}, fmt.Errorf("invalid maturity %q (must be at least one cycle)", pc.Maturity)
	}

	return models.Plan{
		Id:            id,
		Name:          name,
		Version:       version,
		MinAmount:     minAmount,
		MaxAmount:     maxAmount,
		ProfitPercent: profit,
		CycleLength:   cycle,
		Maturity:      maturity,
	}, nil
}

// Version is the catalog version stamped on every plan it hands out
func (c *Catalog) Version() int {
	return c.version
}

// Get returns a copy of the plan, or an error wrapping store.ErrNotFound
func (c *Catalog) Get(planId string) (models.Plan, error) {
	plan, ok := c.plans[planId]
	if !ok {
		return models.Plan{}, fmt.Errorf("%w: plan %q", store.ErrNotFound, planId)
	}
	return plan, nil
}

// List returns the plans in catalog order
func (c *Catalog) List() []models.Plan {
	out := make([]models.Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// ForAmount returns the plans whose range admits amount, cheapest minimum first
func (c *Catalog) ForAmount(amount decimal.Decimal) []models.Plan {
	var out []models.Plan
	for _, plan := range c.List() {
		if plan.InRange(amount) {
			out = append(out, plan)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinAmount.LessThan(out[j].MinAmount)
	})
	return out
}
