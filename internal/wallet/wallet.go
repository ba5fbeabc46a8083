// Package wallet is an in-memory value ledger for native currency. Buyers
// are charged from it and marketplace payouts are sent to it; value only
// enters through Deposit.
package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/efreitasn/nftmarket/internal/domain"
)

// Receiver runs when value is sent to an address that registered one, like
// a contract's receive function. Returning an error rejects the payment.
type Receiver func(ctx context.Context, amount uint256.Int) error

// Wallet holds native balances per address.
type Wallet struct {
	mu        sync.Mutex
	balances  map[common.Address]uint256.Int
	receivers map[common.Address]Receiver
}

// New creates an empty Wallet.
func New() *Wallet {
	return &Wallet{
		balances:  make(map[common.Address]uint256.Int),
		receivers: make(map[common.Address]Receiver),
	}
}

// OnReceive registers a receive hook for addr. A nil hook removes it.
func (w *Wallet) OnReceive(addr common.Address, fn Receiver) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fn == nil {
		delete(w.receivers, addr)
		return
	}
	w.receivers[addr] = fn
}

// Send credits amount to to. The receive hook, if any, runs first without
// the lock held; its error rejects the payment and nothing is credited.
func (w *Wallet) Send(ctx context.Context, to common.Address, amount uint256.Int) error {
	w.mu.Lock()
	hook := w.receivers[to]
	w.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, amount); err != nil {
			return fmt.Errorf("%w: receiver %s: %w", domain.ErrTransferRejected, to.Hex(), err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	bal := w.balances[to]
	if _, overflow := bal.AddOverflow(&bal, &amount); overflow {
		return fmt.Errorf("%w: %w", domain.ErrTransferRejected, domain.ErrAmountOverflow)
	}
	w.balances[to] = bal
	return nil
}

// Deposit credits amount to to without running its receive hook. It is the
// faucet for dev accounts and the refund path for a failed purchase.
func (w *Wallet) Deposit(to common.Address, amount uint256.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bal := w.balances[to]
	if _, overflow := bal.AddOverflow(&bal, &amount); overflow {
		return domain.ErrAmountOverflow
	}
	w.balances[to] = bal
	return nil
}

// Charge removes amount from from's balance.
func (w *Wallet) Charge(from common.Address, amount uint256.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bal := w.balances[from]
	if bal.Lt(&amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", domain.ErrInsufficientFunds, from.Hex(), bal.Dec(), amount.Dec())
	}
	bal.Sub(&bal, &amount)
	if bal.IsZero() {
		delete(w.balances, from)
	} else {
		w.balances[from] = bal
	}
	return nil
}

// BalanceOf returns the balance of addr, zero if it never received value.
func (w *Wallet) BalanceOf(addr common.Address) uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.balances[addr]
}
