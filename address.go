package xrpl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var RippleAlphabet = base58.NewAlphabet(rippleAlphabet)

const (
	AccountIDSize = 20
	checksumSize  = 4
)

var (
	prefixAccountID = []byte{0x00}
	prefixSecp256k1 = []byte{0x21}
	prefixEd25519   = []byte{0x01, 0xe1, 0x4b}
)

// AccountID is the 20 byte identifier behind a classic "r..." address.
type AccountID [AccountIDSize]byte

func (a AccountID) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

func (a AccountID) Address() string {
	return EncodeBase58Check(prefixAccountID, a[:])
}

func (a AccountID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.Address() + `"`), nil
}

// AccountIDFromPublicKey derives the account id for a 33 byte public key.
func AccountIDFromPublicKey(publicKey []byte) (id AccountID) {
	copy(id[:], btcutil.Hash160(publicKey))
	return
}

func AddressFromPublicKey(publicKey []byte) string {
	return AccountIDFromPublicKey(publicKey).Address()
}

// DecodeAddress parses a classic address and verifies its checksum.
func DecodeAddress(address string) (id AccountID, err error) {
	payload, err := DecodeBase58Check(address, prefixAccountID)
	if err != nil {
		err = errors.Wrapf(err, "invalid address '%s'", address)
		return
	}

	if len(payload) != AccountIDSize {
		err = errors.Errorf("invalid address '%s': expected %d byte account id, got %d", address, AccountIDSize, len(payload))
		return
	}

	copy(id[:], payload)
	return
}

func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

func EncodeBase58Check(prefix []byte, payload []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+checksumSize)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return base58.EncodeAlphabet(buf, RippleAlphabet)
}

func DecodeBase58Check(encoded string, prefix []byte) (payload []byte, err error) {
	raw, err := base58.DecodeAlphabet(encoded, RippleAlphabet)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	if len(raw) < len(prefix)+checksumSize {
		err = errors.Errorf("decoded value too short (%d bytes)", len(raw))
		return
	}

	body, sum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	if !bytes.Equal(checksum(body), sum) {
		err = errors.New("checksum mismatch")
		return
	}

	if !bytes.HasPrefix(body, prefix) {
		err = errors.Errorf("unexpected version prefix %x", body[:len(prefix)])
		return
	}

	return body[len(prefix):], nil
}

func checksum(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:checksumSize]
}
