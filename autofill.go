package xrpl

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type AutofillOptions struct {
	LedgerOffset uint32
	FeeCushion   decimal.Decimal
	MaxFeeDrops  uint64
	NetworkID    NetworkID
}

func (o *AutofillOptions) setDefaults() {
	if o.LedgerOffset == 0 {
		o.LedgerOffset = defaultClientOptions.LedgerOffset
	}

	if o.FeeCushion.IsZero() {
		o.FeeCushion = defaultClientOptions.FeeCushion
	}

	if o.MaxFeeDrops == 0 {
		o.MaxFeeDrops = defaultClientOptions.MaxFeeDrops
	}
}

// Autofill completes the fields of tx the caller left unset: Sequence from
// the account's current state, Fee from the node's fee levels and
// LastLedgerSequence relative to the latest validated ledger. Fields that
// are already set are kept as they are.
func (c *Conn) Autofill(ctx context.Context, tx *Transaction, options *AutofillOptions) (err error) {
	opts := AutofillOptions{}
	if options != nil {
		opts = *options
	}
	opts.setDefaults()

	if tx.Account == "" {
		return validationErrorf("autofill: transaction has no source account")
	}

	if tx.NetworkID == nil && opts.NetworkID.Required() {
		id := uint32(opts.NetworkID)
		tx.NetworkID = &id
	}

	if tx.Sequence == 0 {
		info, err2 := c.AccountInfo(ctx, tx.Account, LedgerCurrent)
		if err2 != nil {
			return errors.Wrap(err2, "autofill sequence")
		}
		tx.Sequence = info.Sequence
	}

	if tx.Fee == 0 {
		if tx.Fee, err = c.recommendedFee(ctx, opts); err != nil {
			return errors.Wrap(err, "autofill fee")
		}
	}

	if tx.LastLedgerSequence == 0 {
		index, err2 := c.ValidatedLedgerIndex(ctx)
		if err2 != nil {
			return errors.Wrap(err2, "autofill last ledger sequence")
		}
		tx.LastLedgerSequence = index + opts.LedgerOffset
	}

	return
}

// recommendedFee scales the higher of the base and open ledger fee by the
// cushion and caps it at MaxFeeDrops.
func (c *Conn) recommendedFee(ctx context.Context, opts AutofillOptions) (drops uint64, err error) {
	result, err := c.Request(ctx, "fee", nil)
	if err != nil {
		return
	}

	base, err := ParseDrops(result.Get("drops.base_fee").String())
	if err != nil {
		return
	}

	fee := base
	if open, err2 := ParseDrops(result.Get("drops.open_ledger_fee").String()); err2 == nil && open > fee {
		fee = open
	}

	cushioned := decimal.NewFromInt(int64(fee)).Mul(opts.FeeCushion).Ceil()
	drops = uint64(cushioned.IntPart())

	if drops > opts.MaxFeeDrops {
		drops = opts.MaxFeeDrops
	}

	return
}
