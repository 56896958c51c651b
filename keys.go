package xrpl

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

const (
	SeedSize = 16

	ed25519PublicKeyPrefix = 0xed
)

// Keypair holds the signing material derived from a family seed. Public keys
// are always 33 bytes: ed25519 keys carry an 0xED prefix, secp256k1 keys are
// compressed points.
type Keypair struct {
	Type       KeyType
	PublicKey  []byte
	privateKey []byte
}

func (k *Keypair) PublicKeyHex() string {
	return strings.ToUpper(hex.EncodeToString(k.PublicKey))
}

func (k *Keypair) Address() string {
	return AddressFromPublicKey(k.PublicKey)
}

// Sign signs an already prefixed signing payload.
func (k *Keypair) Sign(message []byte) (signature []byte, err error) {
	switch k.Type {
	case KeyTypeEd25519:
		return ed25519.Sign(ed25519.NewKeyFromSeed(k.privateKey), message), nil
	case KeyTypeSecp256k1:
		digest := sha512Half(message)
		priv := secp256k1.PrivKeyFromBytes(k.privateKey)
		return ecdsa.Sign(priv, digest[:]).Serialize(), nil
	}
	return nil, errors.Wrapf(ErrSigning, "unsupported key type '%s'", k.Type)
}

// Verify checks a signature over message against a 33 byte public key.
func Verify(publicKey, message, signature []byte) (err error) {
	if len(publicKey) == 33 && publicKey[0] == ed25519PublicKeyPrefix {
		point := publicKey[1:]
		a, err2 := new(edwards25519.Point).SetBytes(point)
		if err2 != nil {
			return errors.Wrap(ErrSigning, "ed25519 public key is not a valid curve point")
		}
		// Small order keys verify signatures that any key could have made.
		if new(edwards25519.Point).MultByCofactor(a).Equal(edwards25519.NewIdentityPoint()) == 1 {
			return errors.Wrap(ErrSigning, "ed25519 public key has small order")
		}
		if !ed25519.Verify(point, message, signature) {
			return errors.Wrap(ErrSigning, "ed25519 signature mismatch")
		}
		return nil
	}

	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return errors.Wrapf(ErrSigning, "invalid secp256k1 public key: %v", err)
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return errors.Wrapf(ErrSigning, "invalid secp256k1 signature: %v", err)
	}

	digest := sha512Half(message)
	if !sig.Verify(digest[:], pub) {
		return errors.Wrap(ErrSigning, "secp256k1 signature mismatch")
	}

	return nil
}

// NewSeed returns fresh seed entropy from crypto/rand.
func NewSeed() (entropy []byte, err error) {
	entropy = make([]byte, SeedSize)
	if _, err = rand.Read(entropy); err != nil {
		err = errors.WithStack(err)
	}
	return
}

func EncodeSeed(entropy []byte, typ KeyType) (seed string, err error) {
	if len(entropy) != SeedSize {
		err = errors.Errorf("seed entropy must be %d bytes, got %d", SeedSize, len(entropy))
		return
	}

	switch typ {
	case KeyTypeEd25519:
		return EncodeBase58Check(prefixEd25519, entropy), nil
	case KeyTypeSecp256k1:
		return EncodeBase58Check(prefixSecp256k1, entropy), nil
	}

	err = errors.Errorf("unsupported key type '%s'", typ)
	return
}

// DecodeSeed accepts both "sEd..." ed25519 seeds and secp256k1 family seeds.
func DecodeSeed(seed string) (entropy []byte, typ KeyType, err error) {
	if seed == "" {
		err = errors.Wrap(ErrSigning, "missing secret")
		return
	}

	if entropy, err = DecodeBase58Check(seed, prefixEd25519); err == nil && len(entropy) == SeedSize {
		return entropy, KeyTypeEd25519, nil
	}

	if entropy, err = DecodeBase58Check(seed, prefixSecp256k1); err == nil && len(entropy) == SeedSize {
		return entropy, KeyTypeSecp256k1, nil
	}

	entropy, typ = nil, ""
	err = errors.Wrap(ErrSigning, "secret is not a valid family seed")
	return
}

func DeriveKeypair(seed string) (keys *Keypair, err error) {
	entropy, typ, err := DecodeSeed(seed)
	if err != nil {
		return
	}
	return deriveKeypair(entropy, typ)
}

func deriveKeypair(entropy []byte, typ KeyType) (keys *Keypair, err error) {
	switch typ {
	case KeyTypeEd25519:
		private := sha512Half(entropy)
		public := ed25519.NewKeyFromSeed(private[:]).Public().(ed25519.PublicKey)
		return &Keypair{
			Type:       KeyTypeEd25519,
			PublicKey:  append([]byte{ed25519PublicKeyPrefix}, public...),
			privateKey: private[:],
		}, nil

	case KeyTypeSecp256k1:
		return deriveSecp256k1(entropy)
	}

	err = errors.Wrapf(ErrSigning, "unsupported key type '%s'", typ)
	return
}

// deriveSecp256k1 follows the family generator scheme: a root key from the
// seed, an intermediate key for account 0, and their sum mod the curve order.
func deriveSecp256k1(entropy []byte) (keys *Keypair, err error) {
	root, err := deriveScalar(entropy, nil)
	if err != nil {
		return
	}

	rootPublic := secp256k1.NewPrivateKey(root).PubKey().SerializeCompressed()

	intermediate, err := deriveScalar(rootPublic, []byte{0, 0, 0, 0})
	if err != nil {
		return
	}

	final := new(secp256k1.ModNScalar).Set(root).Add(intermediate)
	if final.IsZero() {
		err = errors.Wrap(ErrSigning, "derived secp256k1 key is zero")
		return
	}

	private := secp256k1.NewPrivateKey(final)
	privateBytes := private.Key.Bytes()

	return &Keypair{
		Type:       KeyTypeSecp256k1,
		PublicKey:  private.PubKey().SerializeCompressed(),
		privateKey: privateBytes[:],
	}, nil
}

func deriveScalar(input []byte, discriminator []byte) (scalar *secp256k1.ModNScalar, err error) {
	for seq := uint32(0); seq < 0xffffffff; seq++ {
		buf := bytes.NewBuffer(nil)
		buf.Write(input)
		buf.Write(discriminator)
		_ = binary.Write(buf, binary.BigEndian, seq)

		digest := sha512Half(buf.Bytes())
		scalar = new(secp256k1.ModNScalar)
		if overflow := scalar.SetByteSlice(digest[:]); !overflow && !scalar.IsZero() {
			return scalar, nil
		}
	}

	err = errors.Wrap(ErrSigning, "unable to derive secp256k1 scalar")
	return
}

func sha512Half(data []byte) (out [32]byte) {
	sum := sha512.Sum512(data)
	copy(out[:], sum[:32])
	return
}
