package model

// Purchase is a validated purchase handed over by the intake collaborator.
type Purchase struct {
	AmountCents int64
	StoreID     string
	CustomerID  string
	TaxID       string
	Reference   string
}

// AwardResult reports what an award produced. Points is zero for no-op awards.
type AwardResult struct {
	Points        int64
	Transaction   *Transaction
	PendingCredit *PendingCredit
	Balance       *Balance
}
