package xrpl

import (
	"github.com/pkg/errors"
)

// Wallet pairs a classic address with the family seed that controls it.
// Wallets are plain values; storing the secret is the caller's business.
type Wallet struct {
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

// GenerateWallet creates a new ed25519 wallet from fresh entropy.
func GenerateWallet() (wallet Wallet, err error) {
	return GenerateWalletWithKeyType(KeyTypeEd25519)
}

func GenerateWalletWithKeyType(typ KeyType) (wallet Wallet, err error) {
	entropy, err := NewSeed()
	if err != nil {
		return
	}

	seed, err := EncodeSeed(entropy, typ)
	if err != nil {
		return
	}

	return WalletFromSeed(seed)
}

// WalletFromSeed restores the wallet controlled by seed.
func WalletFromSeed(seed string) (wallet Wallet, err error) {
	keys, err := DeriveKeypair(seed)
	if err != nil {
		return
	}

	return Wallet{
		Address: keys.Address(),
		Secret:  seed,
	}, nil
}

// Keypair derives the signing keys of the wallet. A wallet whose secret does
// not control its address is rejected.
func (w Wallet) Keypair() (keys *Keypair, err error) {
	keys, err = DeriveKeypair(w.Secret)
	if err != nil {
		return
	}

	if w.Address != "" && keys.Address() != w.Address {
		err = errors.Wrapf(ErrSigning, "secret does not control address %s", w.Address)
		keys = nil
		return
	}

	return
}

// Sign signs tx with the wallet keys, filling in the source account when it
// is empty.
func (w Wallet) Sign(tx *Transaction) (signed *SignedTransaction, err error) {
	keys, err := w.Keypair()
	if err != nil {
		return
	}

	if tx.Account == "" {
		tx.Account = keys.Address()
	}

	return SignTransaction(tx, keys)
}
