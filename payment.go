package xrpl

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const EngineResultSuccess = "tesSUCCESS"

// SubmissionResult is the final, validated outcome of a submitted
// transaction.
type SubmissionResult struct {
	Hash                string      `json:"hash"`
	EngineResult        string      `json:"engineResult"`
	EngineResultMessage string      `json:"engineResultMessage,omitempty"`
	LedgerIndex         uint32      `json:"ledgerIndex"`
	Validated           bool        `json:"validated"`
	Outcome             Outcome     `json:"outcome"`
	Transaction         Transaction `json:"transaction"`
}

// PreliminaryResult is the node's immediate verdict on a submission. It is
// not final: the transaction may still fail or expire.
type PreliminaryResult struct {
	EngineResult        string
	EngineResultMessage string
	Accepted            bool
}

// Rejected reports results that mean the transaction can never make it into
// a ledger (malformed, failed or local errors).
func (p PreliminaryResult) Rejected() bool {
	for _, prefix := range []string{"tem", "tef", "tel"} {
		if strings.HasPrefix(p.EngineResult, prefix) {
			return true
		}
	}
	return false
}

func (c *Conn) Submit(ctx context.Context, blob string) (preliminary PreliminaryResult, err error) {
	result, err := c.Request(ctx, "submit", Params{
		"tx_blob": blob,
	})
	if err != nil {
		return
	}

	preliminary = PreliminaryResult{
		EngineResult:        result.Get("engine_result").String(),
		EngineResultMessage: result.Get("engine_result_message").String(),
		Accepted:            result.Get("accepted").Bool(),
	}

	return
}

// SubmitAndWait submits a signed transaction and blocks until it is
// validated, rejected or expired. Losing the connection before a final
// outcome is known yields a SubmissionError with OutcomeUnknown. A validated
// transaction whose result is not tesSUCCESS is returned together with a
// SubmissionError.
func (c *Conn) SubmitAndWait(ctx context.Context, signed *SignedTransaction, pollInterval time.Duration) (result *SubmissionResult, err error) {
	preliminary, err := c.Submit(ctx, signed.Blob)
	if err != nil {
		err = submissionFailure(signed.Hash, "", err)
		return
	}

	c.log.Debug().
		Str("hash", signed.Hash).
		Str("engine_result", preliminary.EngineResult).
		Msg("transaction submitted")

	if preliminary.Rejected() {
		err = errors.WithStack(&SubmissionError{
			Hash:         signed.Hash,
			EngineResult: preliminary.EngineResult,
			Outcome:      OutcomeFailed,
			Reason:       preliminary.EngineResultMessage,
		})
		return
	}

	if pollInterval <= 0 {
		pollInterval = defaultClientOptions.PollInterval
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err = submissionFailure(signed.Hash, preliminary.EngineResult, ctx.Err())
			return
		case <-c.done:
			err = submissionFailure(signed.Hash, preliminary.EngineResult, c.err)
			return
		case <-ticker.C:
		}

		tx, lookupErr := c.Request(ctx, "tx", Params{
			"transaction": signed.Hash,
		})

		switch {
		case lookupErr == nil && tx.Get("validated").Bool():
			return finalResult(signed, tx)

		case lookupErr != nil && !errors.Is(lookupErr, ErrTransactionNotFound):
			err = submissionFailure(signed.Hash, preliminary.EngineResult, lookupErr)
			return
		}

		index, indexErr := c.ValidatedLedgerIndex(ctx)
		if indexErr != nil {
			err = submissionFailure(signed.Hash, preliminary.EngineResult, indexErr)
			return
		}

		lastLedger := signed.Transaction.LastLedgerSequence
		if lastLedger != 0 && index > lastLedger {
			err = errors.WithStack(&SubmissionError{
				Hash:         signed.Hash,
				EngineResult: preliminary.EngineResult,
				Outcome:      OutcomeFailed,
				Reason:       "latest validated ledger is past the transaction's LastLedgerSequence",
			})
			return
		}
	}
}

func finalResult(signed *SignedTransaction, tx gjson.Result) (result *SubmissionResult, err error) {
	engineResult := tx.Get("meta.TransactionResult").String()

	result = &SubmissionResult{
		Hash:         signed.Hash,
		EngineResult: engineResult,
		LedgerIndex:  uint32(tx.Get("ledger_index").Uint()),
		Validated:    true,
		Outcome:      OutcomeSuccess,
		Transaction:  signed.Transaction,
	}
	result.Transaction.LedgerIndex = result.LedgerIndex
	result.Transaction.Validated = true

	if engineResult != EngineResultSuccess {
		result.Outcome = OutcomeFailed
		err = errors.WithStack(&SubmissionError{
			Hash:         signed.Hash,
			EngineResult: engineResult,
			Outcome:      OutcomeFailed,
			Reason:       "transaction validated with a failure result",
		})
	}

	return
}

// submissionFailure classifies an error raised while a transaction may
// already be in flight. Node error replies mean the submission was refused;
// anything else leaves the outcome unknown.
func submissionFailure(hash string, engineResult string, cause error) error {
	outcome := OutcomeUnknown

	var ledgerErr *LedgerError
	if errors.As(cause, &ledgerErr) {
		outcome = OutcomeFailed
	}

	return errors.WithStack(&SubmissionError{
		Hash:         hash,
		EngineResult: engineResult,
		Outcome:      outcome,
		Cause:        cause,
	})
}

// SendPayment pays amount XRP (a decimal string such as "10" or "0.5") from
// wallet to destination and waits for the payment to be validated.
//
// Input problems are reported as ErrValidation and unusable secrets as
// ErrSigning, both before any connection is made. Failures after submission
// are *SubmissionError; a validated payment that did not succeed is returned
// alongside its error.
func (c *Client) SendPayment(ctx context.Context, wallet Wallet, destination string, amount string) (result *SubmissionResult, err error) {
	if destination == "" {
		err = validationErrorf("missing destination")
		return
	}

	if _, err = DecodeAddress(destination); err != nil {
		err = validationErrorf("invalid destination: %v", err)
		return
	}

	drops, err := XRPToDrops(amount)
	if err != nil {
		return
	}

	keys, err := wallet.Keypair()
	if err != nil {
		return
	}

	tx := NewPayment(keys.Address(), destination, drops)

	logger := c.log.With().
		Str("account", tx.Account).
		Str("destination", destination).
		Uint64("drops", drops).
		Logger()

	err = c.withConn(ctx, func(conn *Conn) (err error) {
		err = conn.Autofill(ctx, tx, &AutofillOptions{
			LedgerOffset: c.options.LedgerOffset,
			FeeCushion:   c.options.FeeCushion,
			MaxFeeDrops:  c.options.MaxFeeDrops,
			NetworkID:    c.params.ID,
		})
		if err != nil {
			return
		}

		signed, err := SignTransaction(tx, keys)
		if err != nil {
			return
		}

		logger.Info().Str("hash", signed.Hash).Uint32("sequence", tx.Sequence).Msg("submitting payment")

		result, err = conn.SubmitAndWait(ctx, signed, c.options.PollInterval)
		return
	})

	if err != nil {
		logger.Error().Err(err).Msg("payment failed")
		return
	}

	logger.Info().Str("hash", result.Hash).Str("result", result.EngineResult).Msg("payment validated")

	return
}
