package model

import "time"

// Balance is the materialized point balance of a customer at a store.
type Balance struct {
	CustomerID string
	StoreID    string
	Available  int64
	Reserved   int64
	UpdatedAt  time.Time
}

// Total returns points held by the customer, reserved ones included.
func (b Balance) Total() int64 {
	return b.Available + b.Reserved
}

// Owner identifies the holder of ledger entries: a registered customer or a bare tax ID.
type Owner struct {
	CustomerID string
	TaxID      string
}

// IsCustomer reports whether the owner is a registered customer.
func (o Owner) IsCustomer() bool {
	return o.CustomerID != ""
}

// Reconciliation compares the transaction log against the balance cache.
type Reconciliation struct {
	CustomerID string
	StoreID    string
	LedgerSum  int64
	Available  int64
	Reserved   int64
}

// Consistent reports whether ledger and balance agree.
func (r Reconciliation) Consistent() bool {
	return r.LedgerSum == r.Available+r.Reserved
}
