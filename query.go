package xrpl

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const DefaultHistoryLimit = 10

// AccountInfo reads the account root at the given ledger selector.
func (c *Conn) AccountInfo(ctx context.Context, address string, ledgerIndex string) (info *AccountInfo, err error) {
	result, err := c.Request(ctx, "account_info", Params{
		"account":      address,
		"ledger_index": ledgerIndex,
	})
	if err != nil {
		return
	}

	return parseAccountInfo(result)
}

// AccountTransactions returns one page of the account's transactions, most
// recent first.
func (c *Conn) AccountTransactions(ctx context.Context, address string, limit int) (txs []Transaction, err error) {
	result, err := c.Request(ctx, "account_tx", Params{
		"account": address,
		"limit":   limit,
	})
	if err != nil {
		return
	}

	entries := result.Get("transactions").Array()
	txs = make([]Transaction, 0, len(entries))

	for _, entry := range entries {
		txs = append(txs, parseHistoryEntry(entry))
	}

	return
}

func parseHistoryEntry(entry gjson.Result) Transaction {
	obj := entry.Get("tx")
	if !obj.Exists() {
		obj = entry.Get("tx_json")
	}

	tx := ParseTransaction(obj, entry.Get("hash").String())
	tx.Validated = entry.Get("validated").Bool()
	if tx.LedgerIndex == 0 {
		tx.LedgerIndex = uint32(entry.Get("ledger_index").Uint())
	}

	return tx
}

// ValidatedLedgerIndex returns the index of the latest validated ledger.
func (c *Conn) ValidatedLedgerIndex(ctx context.Context) (index uint32, err error) {
	result, err := c.Request(ctx, "ledger", Params{
		"ledger_index": LedgerValidated,
	})
	if err != nil {
		return
	}

	index = uint32(result.Get("ledger_index").Uint())
	if index == 0 {
		index = uint32(result.Get("ledger.ledger_index").Uint())
	}
	if index == 0 {
		err = errors.Errorf("ledger: no validated ledger index in response: %s", result.Raw)
	}

	return
}

// GetAccountInfo returns the validated state of address, or
// ErrAccountNotFound when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (info *AccountInfo, err error) {
	if address == "" {
		err = validationErrorf("missing address")
		return
	}

	err = c.withConn(ctx, func(conn *Conn) (err error) {
		info, err = conn.AccountInfo(ctx, address, LedgerValidated)
		return
	})

	if err != nil {
		info = nil
		c.log.Debug().Err(err).Str("address", address).Msg("account info failed")
	}

	return
}

// GetTransactionHistory returns up to limit transactions of address, most
// recent first. A limit of zero or less uses DefaultHistoryLimit. Accounts
// without transactions, funded or not, yield an empty slice.
func (c *Client) GetTransactionHistory(ctx context.Context, address string, limit int) (txs []Transaction, err error) {
	if address == "" {
		err = validationErrorf("missing address")
		return
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	err = c.withConn(ctx, func(conn *Conn) (err error) {
		txs, err = conn.AccountTransactions(ctx, address, limit)
		return
	})

	// An account that was never funded has no history rather than an error.
	if errors.Is(err, ErrAccountNotFound) {
		return []Transaction{}, nil
	}

	if err != nil {
		txs = nil
		c.log.Debug().Err(err).Str("address", address).Msg("transaction history failed")
	}

	return
}

// GetLedgerIndex returns the index of the latest validated ledger.
func (c *Client) GetLedgerIndex(ctx context.Context) (index uint32, err error) {
	err = c.withConn(ctx, func(conn *Conn) (err error) {
		index, err = conn.ValidatedLedgerIndex(ctx)
		return
	})
	return
}
