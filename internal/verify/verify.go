// Package verify checks Sui serialized signatures against personal messages
// and transaction bytes and recovers the signing account.
package verify

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pattonkan/sui-go/suisigner/suicrypto"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
)

var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrUnsupportedScheme      = errors.New("unsupported signature scheme")
	ErrZkLoginRequiresOnChain = errors.New("zkLogin signatures require on-chain verification")

	errNotLowS = errors.New("signature is not low-S")
)

// Signer identifies who produced a verified signature.
type Signer struct {
	Scheme    suikeys.Scheme `json:"scheme"`
	PublicKey []byte         `json:"publicKey"`
	Address   string         `json:"address"`
}

// PersonalMessage verifies a base64 serialized signature over message.
func PersonalMessage(message []byte, signature string) (*Signer, error) {
	digest, err := suikeys.PersonalMessageDigest(message)
	if err != nil {
		return nil, err
	}
	return verifyDigest(digest, signature)
}

// Transaction verifies a base64 serialized signature over BCS TransactionData bytes.
func Transaction(txBytes []byte, signature string) (*Signer, error) {
	return verifyDigest(suikeys.TransactionDigest(txBytes), signature)
}

// ForAddress additionally requires the signer to be the expected account.
func ForAddress(s *Signer, address string) error {
	if s.Address != address {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrInvalidSignature, s.Address, address)
	}
	return nil
}

func verifyDigest(digest []byte, signature string) (*Signer, error) {
	sig, err := suikeys.ParseSerializedSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var ok bool
	switch sig.Scheme {
	case suikeys.SchemeEd25519:
		ok, err = verifyEd25519(digest, sig.Signature, sig.PublicKey)
	case suikeys.SchemeSecp256k1:
		ok, err = verifySecp256k1(digest, sig.Signature, sig.PublicKey)
	case suikeys.SchemeSecp256r1:
		ok, err = verifySecp256r1(digest, sig.Signature, sig.PublicKey)
	case suikeys.SchemeZkLogin:
		return nil, ErrZkLoginRequiresOnChain
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, sig.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	addr, err := sig.Address()
	if err != nil {
		return nil, err
	}
	return &Signer{Scheme: sig.Scheme, PublicKey: sig.PublicKey, Address: addr}, nil
}

func verifyEd25519(digest, sig, pub []byte) (bool, error) {
	key, err := suicrypto.Ed25519PubKeyFromBytes(pub)
	if err != nil {
		return false, err
	}
	return key.Verify(digest, sig), nil
}

// Sui only accepts low-S ECDSA signatures; suicrypto checks the curve
// equation alone.
func verifySecp256k1(digest, sig, pub []byte) (bool, error) {
	key, err := suicrypto.Secp256k1PubKeyFromBytes(pub)
	if err != nil {
		return false, err
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsOverHalfOrder() {
		return false, errNotLowS
	}
	return key.Verify(digest, sig), nil
}

func verifySecp256r1(digest, sig, pub []byte) (bool, error) {
	key, err := suicrypto.Secp256r1PubKeyFromBytes(pub)
	if err != nil {
		return false, err
	}
	halfOrder := new(big.Int).Rsh(key.Curve.Params().N, 1)
	if new(big.Int).SetBytes(sig[32:]).Cmp(halfOrder) > 0 {
		return false, errNotLowS
	}
	return key.Verify(digest, sig), nil
}
