package xrpl

// TransactionStore keeps the transactions observed for watched accounts.
// Transactions are keyed by (address, hash); adding one that is already
// stored is a no-op.
type TransactionStore interface {
	AddTransactions(address string, txs ...Transaction) (added int, err error)
	// GetTransactions returns up to limit transactions for address, most
	// recent ledger first. A limit of zero or less returns everything.
	GetTransactions(address string, limit int) ([]Transaction, error)
	GetTransaction(hash string) (Transaction, error)
	Close() error
}
