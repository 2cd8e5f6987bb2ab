// Package ledger holds the rules that decide how money moves: the transaction
// state machine and the accrual schedule of an investment.
package ledger

import (
	"fmt"

	"investment-ledger-go/internal/models"
	"investment-ledger-go/internal/store"
)

// Effect is the ledger side effect attached to a status transition
type Effect int

const (
	// EffectNone changes the status only.
	EffectNone Effect = iota
	// EffectOpenInvestment opens an investment from the deposit and counts it in totalDeposits.
	EffectOpenInvestment
	// EffectDebitSource debits the withdrawal's source field and counts it in totalWithdrawals.
	EffectDebitSource
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectOpenInvestment:
		return "open_investment"
	case EffectDebitSource:
		return "debit_source"
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

type transitionKey struct {
	txType models.TransactionType
	from   models.TransactionStatus
	to     models.TransactionStatus
}

// transitions is the exhaustive table. Anything missing is rejected.
var transitions = map[transitionKey]Effect{
	{models.TransactionTypeDeposit, models.StatusPending, models.StatusConfirmed}:    EffectOpenInvestment,
	{models.TransactionTypeDeposit, models.StatusPending, models.StatusNotReceived}:  EffectNone,
	{models.TransactionTypeWithdrawal, models.StatusPending, models.StatusCompleted}: EffectDebitSource,
	{models.TransactionTypeWithdrawal, models.StatusPending, models.StatusFailed}:    EffectNone,
}

var statuses = map[models.TransactionType][]models.TransactionStatus{
	models.TransactionTypeDeposit:    {models.StatusPending, models.StatusConfirmed, models.StatusNotReceived},
	models.TransactionTypeWithdrawal: {models.StatusPending, models.StatusCompleted, models.StatusFailed},
}

// Transition validates from -> to for the given type and returns its effect.
// The returned error wraps store.ErrInvalidStateTransition.
func Transition(txType models.TransactionType, from, to models.TransactionStatus) (Effect, error) {
	effect, ok := transitions[transitionKey{txType, from, to}]
	if !ok {
		return EffectNone, fmt.Errorf("%w: %s %s -> %s", store.ErrInvalidStateTransition, txType, from, to)
	}
	return effect, nil
}

// ValidStatus reports whether status belongs to the state set of txType
func ValidStatus(txType models.TransactionType, status models.TransactionStatus) bool {
	for _, s := range statuses[txType] {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(txType models.TransactionType, status models.TransactionStatus) bool {
	if !ValidStatus(txType, status) {
		return false
	}
	for key := range transitions {
		if key.txType == txType && key.from == status {
			return false
		}
	}
	return true
}

// ValidType reports whether txType is a known transaction type
func ValidType(txType models.TransactionType) bool {
	_, ok := statuses[txType]
	return ok
}
