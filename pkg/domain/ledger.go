package domain

// Balance is the ledger state of one account.
type Balance struct {
	// total funds held by the account
	Total uint64

	// funds locked by subnet deposits; never released in this core
	Reserved uint64
}

// Spendable is the amount available for new reservations.
func (b Balance) Spendable() uint64 {
	return b.Total - b.Reserved
}

func (b Balance) Equal(other Balance) bool {
	return b.Total == other.Total && b.Reserved == other.Reserved
}
