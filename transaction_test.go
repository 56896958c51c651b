package xrpl

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSignTransactionRoundTrip(t *testing.T) {
	keys, err := DeriveKeypair(genesisSeed)
	require.Nil(t, err)

	tag := uint32(42)
	tx := NewPayment(genesisAddress, "rrrrrrrrrrrrrrrrrrrrBZbvji", 2_500_000)
	tx.Fee = 12
	tx.Sequence = 7
	tx.LastLedgerSequence = 1020
	tx.DestinationTag = &tag

	signed, err := SignTransaction(tx, keys)
	require.Nil(t, err)

	assert.Empty(t, tx.TxnSignature, "input transaction should be left untouched")
	assert.Equal(t, genesisPublicKey, signed.Transaction.SigningPubKey)
	assert.Len(t, signed.Hash, 64)

	blob, err := hex.DecodeString(signed.Blob)
	require.Nil(t, err)
	assert.Equal(t, signed.Hash, TransactionHash(blob))

	decoded, err := DecodeTransaction(blob)
	require.Nil(t, err)
	assert.Equal(t, TransactionTypePayment, decoded.TransactionType)
	assert.Equal(t, genesisAddress, decoded.Account)
	assert.Equal(t, "rrrrrrrrrrrrrrrrrrrrBZbvji", decoded.Destination)
	require.NotNil(t, decoded.Amount)
	assert.Equal(t, uint64(2_500_000), *decoded.Amount)
	assert.Equal(t, uint64(12), decoded.Fee)
	assert.Equal(t, uint32(7), decoded.Sequence)
	assert.Equal(t, uint32(1020), decoded.LastLedgerSequence)
	require.NotNil(t, decoded.DestinationTag)
	assert.Equal(t, tag, *decoded.DestinationTag)
	assert.Equal(t, signed.Hash, decoded.Hash)

	signer, err := VerifyTransaction(decoded)
	require.Nil(t, err)
	assert.Equal(t, genesisAddress, signer)

	*decoded.Amount = 2_500_001
	_, err = VerifyTransaction(decoded)
	assert.ErrorIs(t, err, ErrSigning, "tampered amount should fail verification")
}

func TestGeneratedWalletSignsPayment(t *testing.T) {
	for _, typ := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1} {
		t.Run(string(typ), func(t *testing.T) {
			wallet, err := GenerateWalletWithKeyType(typ)
			require.Nil(t, err)
			assert.True(t, IsValidAddress(wallet.Address))

			tx := &Transaction{
				TransactionType: TransactionTypePayment,
				Destination:     genesisAddress,
				Amount:          new(uint64),
				Fee:             10,
				Sequence:        1,
			}
			*tx.Amount = 1

			signed, err := wallet.Sign(tx)
			require.Nil(t, err)
			assert.Equal(t, wallet.Address, tx.Account)

			signer, err := VerifyTransaction(&signed.Transaction)
			require.Nil(t, err)
			assert.Equal(t, wallet.Address, signer)
		})
	}
}

func TestWalletKeypairMismatch(t *testing.T) {
	wallet, err := GenerateWallet()
	require.Nil(t, err)

	wallet.Address = genesisAddress
	_, err = wallet.Keypair()
	assert.ErrorIs(t, err, ErrSigning)

	_, err = Wallet{Address: genesisAddress, Secret: "bogus"}.Keypair()
	assert.ErrorIs(t, err, ErrSigning)
	assert.True(t, IsValidation(err))
}

func TestWalletFromSeed(t *testing.T) {
	wallet, err := WalletFromSeed(genesisSeed)
	require.Nil(t, err)
	assert.Equal(t, genesisAddress, wallet.Address)
	assert.Equal(t, genesisSeed, wallet.Secret)
}

func TestParseTransaction(t *testing.T) {
	v1 := gjson.Parse(`{
		"TransactionType": "Payment",
		"Account": "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		"Destination": "rrrrrrrrrrrrrrrrrrrrBZbvji",
		"Amount": "1000",
		"Fee": "12",
		"Sequence": 3,
		"DestinationTag": 9,
		"hash": "AB01",
		"ledger_index": 55
	}`)

	tx := ParseTransaction(v1, "")
	assert.Equal(t, TransactionTypePayment, tx.TransactionType)
	assert.Equal(t, genesisAddress, tx.Account)
	require.NotNil(t, tx.Amount)
	assert.Equal(t, uint64(1000), *tx.Amount)
	assert.Equal(t, uint64(12), tx.Fee)
	assert.Equal(t, uint32(3), tx.Sequence)
	assert.Equal(t, "AB01", tx.Hash)
	assert.Equal(t, uint32(55), tx.LedgerIndex)
	require.NotNil(t, tx.DestinationTag)
	assert.Equal(t, uint32(9), *tx.DestinationTag)

	v2 := gjson.Parse(`{
		"TransactionType": "Payment",
		"Account": "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		"DeliverMax": "2000"
	}`)

	tx = ParseTransaction(v2, "CD02")
	assert.Equal(t, "CD02", tx.Hash)
	require.NotNil(t, tx.Amount)
	assert.Equal(t, uint64(2000), *tx.Amount)

	issued := gjson.Parse(`{
		"TransactionType": "Payment",
		"Amount": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "1"}
	}`)

	tx = ParseTransaction(issued, "EF03")
	assert.Nil(t, tx.Amount, "issued currency amounts have no drops value")
}

func TestDecodeTransactionInvalid(t *testing.T) {
	_, err := DecodeTransaction([]byte{0x12, 0x00})
	assert.Error(t, err)

	_, err = DecodeTransaction([]byte{0x12, 0x00, 0x63})
	assert.Error(t, err, "unsupported transaction type code")
}
