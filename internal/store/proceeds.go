package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// ProceedsLedger tracks the wei owed to each seller. Balances are credited
// on sale and cleared on withdrawal; accounts are never removed.
type ProceedsLedger struct {
	mu       sync.RWMutex
	balances map[common.Address]uint256.Int
	total    uint256.Int // sum of all balances
}

// NewProceedsLedger creates an empty ProceedsLedger.
func NewProceedsLedger() *ProceedsLedger {
	return &ProceedsLedger{
		balances: make(map[common.Address]uint256.Int),
	}
}

// Credit adds amount to the seller's balance. It returns
// domain.ErrAmountOverflow if the balance would exceed 256 bits.
func (l *ProceedsLedger) Credit(seller common.Address, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[seller]
	var next, total uint256.Int
	if _, overflow := next.AddOverflow(&bal, &amount); overflow {
		return domain.ErrAmountOverflow
	}
	if _, overflow := total.AddOverflow(&l.total, &amount); overflow {
		return domain.ErrAmountOverflow
	}
	l.balances[seller] = next
	l.total = total
	return nil
}

// Debit subtracts amount from the seller's balance. It only reverses an
// earlier Credit and returns domain.ErrNoProceeds if the balance is short.
func (l *ProceedsLedger) Debit(seller common.Address, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[seller]
	if bal.Lt(&amount) {
		return domain.ErrNoProceeds
	}
	bal.Sub(&bal, &amount)
	l.balances[seller] = bal
	l.total.Sub(&l.total, &amount)
	return nil
}

// BalanceOf returns the seller's balance, zero for unknown sellers.
func (l *ProceedsLedger) BalanceOf(seller common.Address) uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[seller]
}

// Clear zeroes the seller's balance and returns the prior value. It
// returns domain.ErrNoProceeds if there was nothing to clear.
func (l *ProceedsLedger) Clear(seller common.Address) (uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[seller]
	if bal.IsZero() {
		return uint256.Int{}, domain.ErrNoProceeds
	}
	l.balances[seller] = uint256.Int{}
	l.total.Sub(&l.total, &bal)
	return bal, nil
}

// Total returns the sum of every seller's balance, i.e. the wei held in
// escrow on behalf of sellers.
func (l *ProceedsLedger) Total() uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.total
}
