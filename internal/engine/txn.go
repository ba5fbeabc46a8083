package engine

// txn records undo steps for ledger mutations made before an external call,
// so a failed call can restore the ledger exactly.
type txn struct {
	undo []func()
}

func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// rollback runs undo steps in reverse order.
func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
