package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is one investment tier. Values are copied into every Investment opened
// against it, so a later catalog version never changes running investments.
type Plan struct {
	Id            string              `json:"id" yaml:"id"`
	Name          string              `json:"name" yaml:"name"`
	Version       int                 `json:"version" yaml:"-"`
	MinAmount     decimal.Decimal     `json:"min_amount" yaml:"-"`
	MaxAmount     decimal.NullDecimal `json:"max_amount" yaml:"-"`
	ProfitPercent decimal.Decimal     `json:"profit_percent" yaml:"-"`
	CycleLength   time.Duration       `json:"cycle_length" yaml:"-"`
	Maturity      time.Duration       `json:"maturity" yaml:"-"`
}

// InRange reports whether amount lies within [MinAmount, MaxAmount].
// An invalid MaxAmount means the plan has no upper bound.
func (p Plan) InRange(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinAmount) {
		return false
	}
	if p.MaxAmount.Valid && amount.GreaterThan(p.MaxAmount.Decimal) {
		return false
	}
	return true
}

