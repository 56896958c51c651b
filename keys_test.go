package xrpl

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeypairSecp256k1(t *testing.T) {
	keys, err := DeriveKeypair(genesisSeed)
	require.Nil(t, err)

	assert.Equal(t, KeyTypeSecp256k1, keys.Type)
	assert.Equal(t, genesisPublicKey, keys.PublicKeyHex())
	assert.Equal(t, genesisAddress, keys.Address())
}

func TestDecodeSeed(t *testing.T) {
	entropy, typ, err := DecodeSeed(genesisSeed)
	require.Nil(t, err)
	assert.Equal(t, KeyTypeSecp256k1, typ)
	assert.Equal(t, "DEDCE9CE67B451D852FD4E846FCDE31C", strings.ToUpper(hex.EncodeToString(entropy)))

	seed, err := EncodeSeed(entropy, KeyTypeSecp256k1)
	require.Nil(t, err)
	assert.Equal(t, genesisSeed, seed)
}

func TestEd25519SeedRoundTrip(t *testing.T) {
	entropy, err := NewSeed()
	require.Nil(t, err)
	require.Len(t, entropy, SeedSize)

	seed, err := EncodeSeed(entropy, KeyTypeEd25519)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(seed, "sEd"), seed)

	decoded, typ, err := DecodeSeed(seed)
	require.Nil(t, err)
	assert.Equal(t, KeyTypeEd25519, typ)
	assert.Equal(t, entropy, decoded)

	keys, err := DeriveKeypair(seed)
	require.Nil(t, err)
	assert.Equal(t, KeyTypeEd25519, keys.Type)
	assert.Len(t, keys.PublicKey, 33)
	assert.Equal(t, byte(0xed), keys.PublicKey[0])

	again, err := DeriveKeypair(seed)
	require.Nil(t, err)
	assert.Equal(t, keys.PublicKey, again.PublicKey, "derivation should be deterministic")
}

func TestDecodeSeedInvalid(t *testing.T) {
	for _, seed := range []string{
		"",
		"not a seed",
		genesisAddress,
		genesisSeed[:len(genesisSeed)-1],
	} {
		_, _, err := DecodeSeed(seed)
		assert.ErrorIs(t, err, ErrSigning, seed)
	}

	_, err := EncodeSeed([]byte{1, 2, 3}, KeyTypeEd25519)
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	message := []byte("STX\x00payload")

	for _, typ := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1} {
		t.Run(string(typ), func(t *testing.T) {
			wallet, err := GenerateWalletWithKeyType(typ)
			require.Nil(t, err)

			keys, err := wallet.Keypair()
			require.Nil(t, err)
			assert.Equal(t, typ, keys.Type)

			signature, err := keys.Sign(message)
			require.Nil(t, err)

			assert.Nil(t, Verify(keys.PublicKey, message, signature))

			err = Verify(keys.PublicKey, []byte("STX\x00tampered"), signature)
			assert.ErrorIs(t, err, ErrSigning)

			other, err := GenerateWalletWithKeyType(typ)
			require.Nil(t, err)
			otherKeys, err := other.Keypair()
			require.Nil(t, err)

			err = Verify(otherKeys.PublicKey, message, signature)
			assert.ErrorIs(t, err, ErrSigning)
		})
	}
}

func TestVerifyRejectsSmallOrderEd25519Key(t *testing.T) {
	identity := make([]byte, 32)
	identity[0] = 1

	publicKey := append([]byte{0xed}, identity...)
	// R is the identity point and S is zero: valid for any message under an
	// identity public key.
	signature := append(append([]byte{}, identity...), make([]byte, 32)...)

	err := Verify(publicKey, []byte("STX\x00anything"), signature)
	require.ErrorIs(t, err, ErrSigning)
	assert.Contains(t, err.Error(), "small order")
}

func TestSecp256k1SignatureIsDeterministic(t *testing.T) {
	keys, err := DeriveKeypair(genesisSeed)
	require.Nil(t, err)

	a, err := keys.Sign([]byte("hello"))
	require.Nil(t, err)
	b, err := keys.Sign([]byte("hello"))
	require.Nil(t, err)

	assert.Equal(t, a, b)
}
