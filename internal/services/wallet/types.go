package wallet

// CreditInput describes a wallet credit. Amount is the gross amount in minor
// units, Fee is subtracted before the balance moves. Hash, when set, makes
// the credit idempotent: replays return ErrDuplicateOperation.
type CreditInput struct {
	UserID      string
	Amount      int64
	Fee         int64
	Description string
	Hash        *string
	Type        string
}

// DebitInput describes a wallet debit against the available balance.
type DebitInput struct {
	UserID      string
	Amount      int64
	Description string
	Hash        *string
	Type        string
}
