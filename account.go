package xrpl

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Ledger selectors accepted by ledger_index.
const (
	LedgerValidated = "validated"
	LedgerCurrent   = "current"
	LedgerClosed    = "closed"
)

// AccountInfo is a snapshot of an account root. Balance is in drops.
type AccountInfo struct {
	Address     string `json:"address"`
	Balance     uint64 `json:"balance"`
	Sequence    uint32 `json:"sequence"`
	OwnerCount  uint32 `json:"ownerCount"`
	Flags       uint32 `json:"flags"`
	LedgerIndex uint32 `json:"ledgerIndex"`
	Validated   bool   `json:"validated"`
}

func parseAccountInfo(result gjson.Result) (info *AccountInfo, err error) {
	data := result.Get("account_data")
	if !data.Exists() {
		err = errors.WithStack(ErrAccountNotFound)
		return
	}

	balance, err := ParseDrops(data.Get("Balance").String())
	if err != nil {
		return
	}

	ledgerIndex := result.Get("ledger_index")
	if !ledgerIndex.Exists() {
		ledgerIndex = result.Get("ledger_current_index")
	}

	info = &AccountInfo{
		Address:     data.Get("Account").String(),
		Balance:     balance,
		Sequence:    uint32(data.Get("Sequence").Uint()),
		OwnerCount:  uint32(data.Get("OwnerCount").Uint()),
		Flags:       uint32(data.Get("Flags").Uint()),
		LedgerIndex: uint32(ledgerIndex.Uint()),
		Validated:   result.Get("validated").Bool(),
	}

	return
}
