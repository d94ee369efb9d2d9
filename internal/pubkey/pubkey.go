// Package pubkey converts secp256k1 public keys between their compressed and
// uncompressed encodings and derives EVM addresses from them.
//
// Sui reports secp256k1 account keys in compressed form, optionally prefixed
// with the Sui signature-scheme flag. The same key controls an EVM account
// whose address is the last 20 bytes of keccak256(x || y).
package pubkey

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

const (
	CompressedLen   = 33
	UncompressedLen = 65
	EVMAddressLen   = 20

	tagEven         byte = 0x02
	tagOdd          byte = 0x03
	tagUncompressed byte = 0x04

	// suiSecp256k1Flag prefixes secp256k1 keys reported by Sui wallets.
	suiSecp256k1Flag byte = 0x01
)

// ErrInvalidPublicKey is returned when the input does not decode to a point on the curve.
var ErrInvalidPublicKey = errors.New("invalid public key")

// Decompress returns the 65-byte 0x04||x||y encoding of a 33-byte compressed key.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) != CompressedLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, CompressedLen, len(compressed))
	}
	if compressed[0] != tagEven && compressed[0] != tagOdd {
		return nil, fmt.Errorf("%w: unexpected prefix 0x%02x", ErrInvalidPublicKey, compressed[0])
	}

	// ParsePubKey solves y^2 = x^3 + 7 for the x coordinate and picks the root
	// whose parity matches the tag. It rejects x >= p and x off the curve.
	key, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return key.SerializeUncompressed(), nil
}

// Compress is the inverse of Decompress.
func Compress(uncompressed []byte) ([]byte, error) {
	if len(uncompressed) != UncompressedLen || uncompressed[0] != tagUncompressed {
		return nil, fmt.Errorf("%w: not a 65-byte uncompressed key", ErrInvalidPublicKey)
	}
	key, err := secp256k1.ParsePubKey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return key.SerializeCompressed(), nil
}

// Keccak256 is the legacy Keccak hash used by Ethereum, not SHA3-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = h.Write(b)
	}
	return h.Sum(nil)
}

// DeriveEVMAddress returns the lowercase 0x-prefixed EVM address controlled by
// the compressed secp256k1 key.
func DeriveEVMAddress(compressed []byte) (string, error) {
	uncompressed, err := Decompress(compressed)
	if err != nil {
		return "", err
	}
	sum := Keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(sum[len(sum)-EVMAddressLen:]), nil
}

// CompressedFromAccountKey extracts the compressed secp256k1 key from a wallet
// account public key. Keys of other signature schemes report ok == false.
func CompressedFromAccountKey(raw []byte) (compressed []byte, ok bool) {
	switch {
	case len(raw) == CompressedLen+1 && raw[0] == suiSecp256k1Flag:
		return raw[1:], true
	case len(raw) == CompressedLen && (raw[0] == tagEven || raw[0] == tagOdd):
		return raw, true
	default:
		return nil, false
	}
}

// EVMAddressForAccount derives the EVM address for a wallet account key.
// The address is empty with a nil error when the key belongs to a scheme that
// has no EVM counterpart. A key that looks like secp256k1 but is not on the
// curve yields ErrInvalidPublicKey.
func EVMAddressForAccount(raw []byte) (string, error) {
	compressed, ok := CompressedFromAccountKey(raw)
	if !ok {
		return "", nil
	}
	return DeriveEVMAddress(compressed)
}
