package ledger

import (
	"time"

	"investment-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// AccrualStep is what one accrual pass should do to an investment
type AccrualStep struct {
	// Cycles credited in this pass.
	Cycles int
	// Forfeited cycles whose boundary passed while earnings were paused.
	Forfeited int
	// Boundaries are the cycle boundaries credited in this pass, oldest first.
	Boundaries []time.Time
	// PerCycle is the profit of a single cycle.
	PerCycle decimal.Decimal
	// Credit is Cycles * PerCycle.
	Credit decimal.Decimal
	// LastAccrualAt is the boundary the investment advances to.
	LastAccrualAt time.Time
	// Matured is true when now has reached MaturesAt.
	Matured bool
}

// Due reports whether the step changes the investment at all
func (s AccrualStep) Due() bool {
	return s.Cycles > 0 || s.Forfeited > 0 || s.Matured
}

// MaxCyclesPerPass bounds the boundaries one pass handles. An investment with
// more due boundaries catches up over the following passes.
const MaxCyclesPerPass = 500

// PlanAccrual computes the accrual step for inv at now.
//
// Cycles are boundary aligned: boundary k is LastAccrualAt + k*CycleLength and
// only boundaries at or before both now and MaturesAt count. Boundaries that
// pass while paused are forfeited, never credited later.
func PlanAccrual(inv models.Investment, now time.Time, paused bool) AccrualStep {
	step := AccrualStep{
		PerCycle:      CycleProfit(inv.Principal, inv.ProfitPercent),
		Credit:        decimal.Zero,
		LastAccrualAt: inv.LastAccrualAt,
	}
	if inv.Status != models.InvestmentActive {
		return step
	}

	if inv.CycleLength > 0 {
		limit := now
		if inv.MaturesAt.Before(limit) {
			limit = inv.MaturesAt
		}
		var due []time.Time
		boundary := inv.LastAccrualAt.Add(inv.CycleLength)
		for ; !boundary.After(limit) && len(due) < MaxCyclesPerPass; boundary = boundary.Add(inv.CycleLength) {
			due = append(due, boundary)
		}
		if !boundary.After(limit) {
			// Capped; maturity waits until the remaining boundaries are handled.
			return finish(step, due, paused)
		}
		step = finish(step, due, paused)
	}

	step.Matured = !now.Before(inv.MaturesAt)
	return step
}

func finish(step AccrualStep, due []time.Time, paused bool) AccrualStep {
	n := len(due)
	if n == 0 {
		return step
	}
	step.LastAccrualAt = due[n-1]
	if paused {
		step.Forfeited = n
	} else {
		step.Cycles = n
		step.Boundaries = due
		step.Credit = step.PerCycle.Mul(decimal.NewFromInt(int64(n)))
	}
	return step
}

// CycleProfit is principal * percent / 100
func CycleProfit(principal, percent decimal.Decimal) decimal.Decimal {
	return principal.Mul(percent).Shift(-2)
}

// CycleIndex is the 1-based number of the cycle ending at boundary
func CycleIndex(inv models.Investment, boundary time.Time) int64 {
	if inv.CycleLength <= 0 {
		return 0
	}
	return int64(boundary.Sub(inv.OpenedAt) / inv.CycleLength)
}

// NewInvestment builds an active investment bound to a snapshot of plan.
// Deposit confirmation and reinvestment both open investments through here.
func NewInvestment(id, userId, transactionId string, origin models.InvestmentOrigin, plan models.Plan, principal decimal.Decimal, now time.Time) models.Investment {
	return models.Investment{
		Id:            id,
		UserId:        userId,
		TransactionId: transactionId,
		Origin:        origin,
		PlanId:        plan.Id,
		PlanVersion:   plan.Version,
		Principal:     principal,
		ProfitPercent: plan.ProfitPercent,
		CycleLength:   plan.CycleLength,
		Maturity:      plan.Maturity,
		OpenedAt:      now,
		LastAccrualAt: now,
		MaturesAt:     now.Add(plan.Maturity),
		CyclesAccrued: 0,
		AccruedTotal:  decimal.Zero,
		Status:        models.InvestmentActive,
		Version:       1,
		UpdatedAt:     now,
	}
}
