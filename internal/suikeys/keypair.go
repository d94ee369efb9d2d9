package suikeys

import (
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fardream/go-bcs/bcs"
	"github.com/pattonkan/sui-go/suisigner"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

const secretLen = 32

var ErrInvalidPrivateKey = errors.New("invalid private key")

// AddressFromSuiPublicKey derives the account address from flag || pubkey.
func AddressFromSuiPublicKey(suiPublicKey []byte) string {
	sum := blake2b.Sum256(suiPublicKey)
	return "0x" + hex.EncodeToString(sum[:])
}

// AddressFromPublicKey derives the account address for a raw key of the given scheme.
func AddressFromPublicKey(scheme Scheme, publicKey []byte) (string, error) {
	if n := scheme.PublicKeyLen(); n == 0 || len(publicKey) != n {
		return "", fmt.Errorf("%s public key must be %d bytes, got %d", scheme, scheme.PublicKeyLen(), len(publicKey))
	}
	return AddressFromSuiPublicKey(append([]byte{byte(scheme)}, publicKey...)), nil
}

// Keypair signs intent messages on behalf of one Sui account.
type Keypair struct {
	scheme Scheme
	signer *suisigner.Signer
}

// NewKeypair restores a keypair of the given scheme from a 32-byte secret.
func NewKeypair(scheme Scheme, secret []byte) (*Keypair, error) {
	switch scheme {
	case SchemeEd25519, SchemeSecp256k1, SchemeSecp256r1:
	default:
		return nil, fmt.Errorf("keypairs for %s are not supported", scheme)
	}
	if len(secret) != secretLen {
		return nil, fmt.Errorf("%w: %s secret must be %d bytes", ErrInvalidPrivateKey, scheme, secretLen)
	}
	if err := checkScalar(scheme, secret); err != nil {
		return nil, err
	}
	return &Keypair{scheme: scheme, signer: suisigner.NewSigner(secret, scheme.Flag())}, nil
}

// checkScalar rejects ECDSA secrets outside [1, n).
func checkScalar(scheme Scheme, secret []byte) error {
	switch scheme {
	case SchemeSecp256k1:
		var k secp256k1.ModNScalar
		if overflow := k.SetByteSlice(secret); overflow || k.IsZero() {
			return fmt.Errorf("%w: secp256k1 secret out of range", ErrInvalidPrivateKey)
		}
	case SchemeSecp256r1:
		d := new(big.Int).SetBytes(secret)
		if d.Sign() == 0 || d.Cmp(elliptic.P256().Params().N) >= 0 {
			return fmt.Errorf("%w: secp256r1 secret out of range", ErrInvalidPrivateKey)
		}
	}
	return nil
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair(scheme Scheme) (*Keypair, error) {
	secret := make([]byte, secretLen)
	for {
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to read random secret: %w", err)
		}
		kp, err := NewKeypair(scheme, secret)
		if errors.Is(err, ErrInvalidPrivateKey) {
			continue
		}
		return kp, err
	}
}

// NewMnemonic returns a fresh 12-word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// KeypairFromMnemonic derives the account at the default Sui wallet path.
// Only ED25519 derivation is available.
func KeypairFromMnemonic(scheme Scheme, mnemonic string) (*Keypair, error) {
	if scheme != SchemeEd25519 {
		return nil, fmt.Errorf("mnemonic derivation for %s is not supported", scheme)
	}
	signer, err := suisigner.NewSignerWithMnemonic(mnemonic, scheme.Flag())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &Keypair{scheme: scheme, signer: signer}, nil
}

func (k *Keypair) Scheme() Scheme { return k.scheme }

// PublicKey is the raw key without the scheme flag.
func (k *Keypair) PublicKey() []byte { return k.signer.PublicKeyBytes() }

// SuiPublicKey is flag || PublicKey, the form wallets report for accounts.
func (k *Keypair) SuiPublicKey() []byte {
	return append([]byte{byte(k.scheme)}, k.PublicKey()...)
}

func (k *Keypair) Address() string { return k.signer.Address.String() }

// PrivateKey returns the 32-byte secret.
func (k *Keypair) PrivateKey() []byte {
	out := make([]byte, secretLen)
	switch k.scheme {
	case SchemeSecp256r1:
		k.signer.KeypairSecp256r1.PriKey.Ecdsa().D.FillBytes(out)
	default:
		copy(out, k.signer.PrivateKeyBytes())
	}
	return out
}

// SignPersonalMessage returns the base64 serialized signature over the
// PersonalMessage intent of message.
func (k *Keypair) SignPersonalMessage(message []byte) (string, error) {
	body, err := bcs.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to encode personal message: %w", err)
	}
	return k.sign(body, suisigner.IntentPersonalMessage())
}

// SignTransaction returns the base64 serialized signature over the
// TransactionData intent of txBytes.
func (k *Keypair) SignTransaction(txBytes []byte) (string, error) {
	return k.sign(txBytes, suisigner.IntentTransaction())
}

func (k *Keypair) sign(body []byte, intent suisigner.Intent) (string, error) {
	sig, err := k.signer.SignDigest(body, intent)
	if err != nil {
		return "", fmt.Errorf("failed to sign digest: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig.Bytes()), nil
}
