package xrpl

import (
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/alexdcox/xrpl-go/internal/ledgertest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeAccount struct {
	balance  uint64
	sequence uint32
	history  []map[string]any
}

type fakeSubmission struct {
	tx        *Transaction
	result    string
	validated bool
}

// fakeLedger is a ledgertest.Node with just enough account state to accept
// payments signed by this package.
type fakeLedger struct {
	*ledgertest.Node

	mu          sync.Mutex
	accounts    map[string]*fakeAccount
	submissions map[string]*fakeSubmission
	order       []string
	ledgerIndex uint32

	// preliminary and final override the engine results of new submissions.
	preliminary string
	final       string
	// holdValidation keeps submissions pending until validateAll is called.
	holdValidation bool
	openLedgerFee  string
}

func newFakeLedger(t *testing.T) *fakeLedger {
	l := &fakeLedger{
		Node:          ledgertest.NewNode(),
		accounts:      make(map[string]*fakeAccount),
		submissions:   make(map[string]*fakeSubmission),
		ledgerIndex:   1000,
		openLedgerFee: "10",
	}

	l.Handle("account_info", l.accountInfo)
	l.Handle("account_tx", l.accountTx)
	l.Handle("fee", l.fee)
	l.Handle("ledger", l.ledger)
	l.Handle("submit", l.submit)
	l.Handle("tx", l.tx)
	l.Handle("subscribe", func(gjson.Result) (any, *ledgertest.Error) { return nil, nil })

	t.Cleanup(l.Close)

	return l
}

func (l *fakeLedger) client(t *testing.T) *Client {
	logger := zerolog.Nop()
	client, err := NewClient(&ClientOptions{
		Network:        NetworkLocalNet,
		Endpoint:       l.URL(),
		Logger:         &logger,
		RequestTimeout: 5 * time.Second,
		PollInterval:   10 * time.Millisecond,
	})
	require.Nil(t, err)
	return client
}

// set changes the ledger behaviour under its lock.
func (l *fakeLedger) set(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

func (l *fakeLedger) fund(address string, drops uint64, sequence uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = &fakeAccount{balance: drops, sequence: sequence}
}

func (l *fakeLedger) account(address string) fakeAccount {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[address]; ok {
		return *acc
	}
	return fakeAccount{}
}

func (l *fakeLedger) addHistory(address string, entries ...map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accounts[address]
	acc.history = append(acc.history, entries...)
}

func (l *fakeLedger) advance(n uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ledgerIndex += n
}

func (l *fakeLedger) submitted() []*Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Transaction, 0, len(l.order))
	for _, hash := range l.order {
		out = append(out, l.submissions[hash].tx)
	}
	return out
}

func (l *fakeLedger) accountInfo(req gjson.Result) (any, *ledgertest.Error) {
	address := req.Get("account").String()
	if !IsValidAddress(address) {
		return nil, &ledgertest.Error{Code: "actMalformed", Message: "Account malformed."}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[address]
	if !ok {
		return nil, &ledgertest.Error{Code: "actNotFound", Message: "Account not found."}
	}

	return map[string]any{
		"account_data": map[string]any{
			"Account":    address,
			"Balance":    FormatDrops(acc.balance),
			"Sequence":   acc.sequence,
			"OwnerCount": 0,
			"Flags":      0,
		},
		"ledger_index": l.ledgerIndex,
		"validated":    req.Get("ledger_index").String() == LedgerValidated,
	}, nil
}

func (l *fakeLedger) accountTx(req gjson.Result) (any, *ledgertest.Error) {
	address := req.Get("account").String()

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[address]
	if !ok {
		return nil, &ledgertest.Error{Code: "actNotFound", Message: "Account not found."}
	}

	entries := acc.history
	if limit := int(req.Get("limit").Int()); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return map[string]any{
		"account":      address,
		"limit":        req.Get("limit").Int(),
		"transactions": append([]map[string]any{}, entries...),
	}, nil
}

func (l *fakeLedger) fee(gjson.Result) (any, *ledgertest.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{
		"drops": map[string]any{
			"base_fee":        "10",
			"median_fee":      "5000",
			"minimum_fee":     "10",
			"open_ledger_fee": l.openLedgerFee,
		},
	}, nil
}

func (l *fakeLedger) ledger(gjson.Result) (any, *ledgertest.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{
		"ledger_index": l.ledgerIndex,
		"validated":    true,
	}, nil
}

func (l *fakeLedger) submit(req gjson.Result) (any, *ledgertest.Error) {
	blob, err := hex.DecodeString(req.Get("tx_blob").String())
	if err != nil {
		return nil, &ledgertest.Error{Code: "invalidParams", Message: "Invalid parameters."}
	}

	tx, err := DecodeTransaction(blob)
	if err != nil {
		return nil, &ledgertest.Error{Code: "invalidTransaction", Message: err.Error()}
	}

	if _, err = VerifyTransaction(tx); err != nil {
		return nil, &ledgertest.Error{Code: "invalidTransaction", Message: "fails local checks: Invalid signature."}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	result := "tesSUCCESS"
	acc, ok := l.accounts[tx.Account]
	switch {
	case l.preliminary != "":
		result = l.preliminary
	case !ok:
		result = "terNO_ACCOUNT"
	case tx.Sequence < acc.sequence:
		result = "tefPAST_SEQ"
	case tx.Sequence > acc.sequence:
		result = "terPRE_SEQ"
	}

	if result == "tesSUCCESS" {
		acc.sequence++
		acc.balance -= tx.Fee + *tx.Amount
		if dest, ok := l.accounts[tx.Destination]; ok {
			dest.balance += *tx.Amount
		}

		final := "tesSUCCESS"
		if l.final != "" {
			final = l.final
		}

		l.submissions[tx.Hash] = &fakeSubmission{tx: tx, result: final, validated: !l.holdValidation}
		l.order = append(l.order, tx.Hash)
	}

	return map[string]any{
		"accepted":              result == "tesSUCCESS",
		"engine_result":         result,
		"engine_result_message": "The transaction was applied.",
		"tx_blob":               req.Get("tx_blob").String(),
		"tx_json":               map[string]any{"hash": tx.Hash},
	}, nil
}

func (l *fakeLedger) tx(req gjson.Result) (any, *ledgertest.Error) {
	hash := req.Get("transaction").String()

	l.mu.Lock()
	defer l.mu.Unlock()

	sub, ok := l.submissions[hash]
	if !ok || !sub.validated {
		return nil, &ledgertest.Error{Code: "txnNotFound", Message: "Transaction not found."}
	}

	return map[string]any{
		"hash":         hash,
		"ledger_index": l.ledgerIndex,
		"validated":    true,
		"meta": map[string]any{
			"TransactionResult": sub.result,
		},
	}, nil
}

// streamTx builds a transaction stream message in the v1 shape.
func streamTx(account, destination, hash string, drops uint64, ledger uint32) map[string]any {
	return map[string]any{
		"type":          "transaction",
		"engine_result": "tesSUCCESS",
		"ledger_index":  ledger,
		"validated":     true,
		"transaction": map[string]any{
			"TransactionType": "Payment",
			"Account":         account,
			"Destination":     destination,
			"Amount":          FormatDrops(drops),
			"Fee":             "12",
			"Sequence":        ledger,
			"hash":            hash,
		},
	}
}
