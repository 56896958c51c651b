package xrpl

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

type TransactionType string

const (
	TransactionTypePayment TransactionType = "Payment"
)

var transactionTypeCodes = map[TransactionType]uint16{
	TransactionTypePayment: 0,
}

// Transaction is the subset of ledger transaction fields this client reads
// and writes. Zero Sequence, Fee and LastLedgerSequence mean "not set" and
// are filled in by Autofill.
type Transaction struct {
	TransactionType    TransactionType `json:"TransactionType"`
	Account            string          `json:"Account"`
	Destination        string          `json:"Destination,omitempty"`
	Amount             *uint64         `json:"Amount,omitempty"`
	Fee                uint64          `json:"Fee,omitempty"`
	Sequence           uint32          `json:"Sequence,omitempty"`
	LastLedgerSequence uint32          `json:"LastLedgerSequence,omitempty"`
	Flags              uint32          `json:"Flags,omitempty"`
	DestinationTag     *uint32         `json:"DestinationTag,omitempty"`
	SourceTag          *uint32         `json:"SourceTag,omitempty"`
	NetworkID          *uint32         `json:"NetworkID,omitempty"`
	SigningPubKey      string          `json:"SigningPubKey,omitempty"`
	TxnSignature       string          `json:"TxnSignature,omitempty"`
	Hash               string          `json:"hash,omitempty"`
	LedgerIndex        uint32          `json:"ledger_index,omitempty"`
	Validated          bool            `json:"validated,omitempty"`
}

// NewPayment builds an unsigned XRP payment. Amount is in drops.
func NewPayment(account, destination string, drops uint64) *Transaction {
	return &Transaction{
		TransactionType: TransactionTypePayment,
		Account:         account,
		Destination:     destination,
		Amount:          &drops,
	}
}

// ParseTransaction reads a transaction object. Both the v1 shape (hash inside
// the object) and the v2 shape (hash alongside tx_json, DeliverMax instead of
// Amount) are accepted; hash is used when the object carries none.
func ParseTransaction(obj gjson.Result, hash string) Transaction {
	tx := Transaction{
		TransactionType:    TransactionType(obj.Get("TransactionType").String()),
		Account:            obj.Get("Account").String(),
		Destination:        obj.Get("Destination").String(),
		Sequence:           uint32(obj.Get("Sequence").Uint()),
		LastLedgerSequence: uint32(obj.Get("LastLedgerSequence").Uint()),
		Flags:              uint32(obj.Get("Flags").Uint()),
		SigningPubKey:      obj.Get("SigningPubKey").String(),
		TxnSignature:       obj.Get("TxnSignature").String(),
		Hash:               obj.Get("hash").String(),
		LedgerIndex:        uint32(obj.Get("ledger_index").Uint()),
	}

	if tx.Hash == "" {
		tx.Hash = hash
	}

	if fee, err := ParseDrops(obj.Get("Fee").String()); err == nil {
		tx.Fee = fee
	}

	amount := obj.Get("Amount")
	if !amount.Exists() {
		amount = obj.Get("DeliverMax")
	}
	// Issued currency amounts are objects and have no drops value.
	if amount.Type == gjson.String {
		if drops, err := ParseDrops(amount.String()); err == nil {
			tx.Amount = &drops
		}
	}

	if tag := obj.Get("DestinationTag"); tag.Exists() {
		v := uint32(tag.Uint())
		tx.DestinationTag = &v
	}

	if tag := obj.Get("SourceTag"); tag.Exists() {
		v := uint32(tag.Uint())
		tx.SourceTag = &v
	}

	return tx
}

func (tx *Transaction) serializer() (s *Serializer, err error) {
	code, ok := transactionTypeCodes[tx.TransactionType]
	if !ok {
		err = errors.Errorf("unsupported transaction type '%s'", tx.TransactionType)
		return
	}

	account, err := DecodeAddress(tx.Account)
	if err != nil {
		return
	}

	s = &Serializer{}
	s.PutUInt16(FieldTransactionType, code)
	s.PutUInt32(FieldFlags, tx.Flags)
	s.PutUInt32(FieldSequence, tx.Sequence)
	s.PutAccountID(FieldAccount, account)

	if err = s.PutDrops(FieldFee, tx.Fee); err != nil {
		return
	}

	if tx.LastLedgerSequence != 0 {
		s.PutUInt32(FieldLastLedgerSequence, tx.LastLedgerSequence)
	}

	if tx.NetworkID != nil {
		s.PutUInt32(FieldNetworkID, *tx.NetworkID)
	}

	if tx.SourceTag != nil {
		s.PutUInt32(FieldSourceTag, *tx.SourceTag)
	}

	if tx.DestinationTag != nil {
		s.PutUInt32(FieldDestinationTag, *tx.DestinationTag)
	}

	if tx.Destination != "" {
		destination, err2 := DecodeAddress(tx.Destination)
		if err2 != nil {
			err = err2
			return
		}
		s.PutAccountID(FieldDestination, destination)
	}

	if tx.Amount != nil {
		if err = s.PutDrops(FieldAmount, *tx.Amount); err != nil {
			return
		}
	}

	if err = putHexBlob(s, FieldSigningPubKey, tx.SigningPubKey); err != nil {
		return
	}

	if tx.TxnSignature != "" {
		if err = putHexBlob(s, FieldTxnSignature, tx.TxnSignature); err != nil {
			return
		}
	}

	return
}

func putHexBlob(s *Serializer, field Field, value string) error {
	blob, err := hex.DecodeString(value)
	if err != nil {
		return errors.Wrapf(err, "%s is not valid hex", field.Name)
	}
	return s.PutBlob(field, blob)
}

// SigningPayload returns the prefixed bytes a signature commits to.
func (tx *Transaction) SigningPayload() (payload []byte, err error) {
	s, err := tx.serializer()
	if err != nil {
		return
	}
	payload = append(append([]byte{}, HashPrefixTransactionSign...), s.Bytes(true)...)
	return
}

// Encode serializes the full transaction, signature included.
func (tx *Transaction) Encode() (blob []byte, err error) {
	s, err := tx.serializer()
	if err != nil {
		return
	}
	return s.Bytes(false), nil
}

type SignedTransaction struct {
	Transaction Transaction
	Blob        string
	Hash        string
}

// SignTransaction signs a copy of tx with keys. The caller's transaction is
// left untouched.
func SignTransaction(tx *Transaction, keys *Keypair) (signed *SignedTransaction, err error) {
	if keys == nil {
		err = errors.Wrap(ErrSigning, "no signing keys")
		return
	}

	out := *tx
	out.SigningPubKey = keys.PublicKeyHex()
	out.TxnSignature = ""
	out.Hash = ""

	payload, err := out.SigningPayload()
	if err != nil {
		err = errors.Wrap(ErrSigning, err.Error())
		return
	}

	signature, err := keys.Sign(payload)
	if err != nil {
		return
	}
	out.TxnSignature = hexUpper(signature)

	blob, err := out.Encode()
	if err != nil {
		err = errors.Wrap(ErrSigning, err.Error())
		return
	}

	out.Hash = TransactionHash(blob)

	signed = &SignedTransaction{
		Transaction: out,
		Blob:        hexUpper(blob),
		Hash:        out.Hash,
	}

	return
}

// VerifyTransaction checks the signature of a signed transaction and returns
// the address of the key that produced it.
func VerifyTransaction(tx *Transaction) (signer string, err error) {
	publicKey, err := hex.DecodeString(tx.SigningPubKey)
	if err != nil || len(publicKey) == 0 {
		err = errors.Wrap(ErrSigning, "missing or malformed signing public key")
		return
	}

	signature, err := hex.DecodeString(tx.TxnSignature)
	if err != nil || len(signature) == 0 {
		err = errors.Wrap(ErrSigning, "missing or malformed signature")
		return
	}

	payload, err := tx.SigningPayload()
	if err != nil {
		return
	}

	if err = Verify(publicKey, payload, signature); err != nil {
		return
	}

	return AddressFromPublicKey(publicKey), nil
}

// DecodeTransaction parses a serialized transaction (for example a signed
// blob) back into a Transaction. Only the fields this package writes are
// understood.
func DecodeTransaction(blob []byte) (tx *Transaction, err error) {
	tx = &Transaction{}
	d := NewDeserializer(blob)

	for !d.Done() {
		field, value, err2 := d.Next()
		if err2 != nil {
			return nil, errors.Wrap(err2, "failed to decode transaction")
		}

		switch field {
		case FieldTransactionType:
			code := binary.BigEndian.Uint16(value)
			for typ, c := range transactionTypeCodes {
				if c == code {
					tx.TransactionType = typ
				}
			}
			if tx.TransactionType == "" {
				return nil, errors.Errorf("unsupported transaction type code %d", code)
			}
		case FieldFlags:
			tx.Flags = binary.BigEndian.Uint32(value)
		case FieldSequence:
			tx.Sequence = binary.BigEndian.Uint32(value)
		case FieldLastLedgerSequence:
			tx.LastLedgerSequence = binary.BigEndian.Uint32(value)
		case FieldNetworkID:
			tx.NetworkID = uint32Ptr(binary.BigEndian.Uint32(value))
		case FieldSourceTag:
			tx.SourceTag = uint32Ptr(binary.BigEndian.Uint32(value))
		case FieldDestinationTag:
			tx.DestinationTag = uint32Ptr(binary.BigEndian.Uint32(value))
		case FieldFee:
			tx.Fee = binary.BigEndian.Uint64(value) &^ 0x4000000000000000
		case FieldAmount:
			drops := binary.BigEndian.Uint64(value) &^ 0x4000000000000000
			tx.Amount = &drops
		case FieldSigningPubKey:
			tx.SigningPubKey = hexUpper(value)
		case FieldTxnSignature:
			tx.TxnSignature = hexUpper(value)
		case FieldAccount, FieldDestination:
			if len(value) != AccountIDSize {
				return nil, errors.Errorf("%s: invalid account id length %d", field.Name, len(value))
			}
			var id AccountID
			copy(id[:], value)
			if field == FieldAccount {
				tx.Account = id.Address()
			} else {
				tx.Destination = id.Address()
			}
		}
	}

	if tx.TxnSignature != "" {
		tx.Hash = TransactionHash(blob)
	}

	return
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}
