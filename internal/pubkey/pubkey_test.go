package pubkey

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Keys for private keys 1 and 2, i.e. G and 2G.
const (
	gCompressed   = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	gY            = "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	gEVMAddress   = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	g2Compressed  = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	g2EVMAddress  = "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf"
	fieldPrimeHex = "fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f"
)

func TestDecompress_GoldenVector(t *testing.T) {
	out, err := Decompress(mustHex(t, gCompressed))
	require.NoError(t, err)
	require.Len(t, out, UncompressedLen)

	assert.Equal(t, byte(0x04), out[0])
	assert.Equal(t, gCompressed[2:], hex.EncodeToString(out[1:33]))
	assert.Equal(t, gY, hex.EncodeToString(out[33:]))
}

func TestDecompress_OddParity(t *testing.T) {
	key := mustHex(t, gCompressed)
	key[0] = 0x03

	out, err := Decompress(key)
	require.NoError(t, err)

	// -G shares x with G and has y' = p - y.
	p, _ := new(big.Int).SetString(fieldPrimeHex, 16)
	y, _ := new(big.Int).SetString(gY, 16)
	negY := new(big.Int).Sub(p, y)
	assert.Equal(t, 0, negY.Cmp(new(big.Int).SetBytes(out[33:])))
	assert.Equal(t, uint(1), new(big.Int).SetBytes(out[33:]).Bit(0))
}

func TestDeriveEVMAddress_GoldenVectors(t *testing.T) {
	tests := []struct {
		name       string
		compressed string
		want       string
	}{
		{name: "private key 1", compressed: gCompressed, want: gEVMAddress},
		{name: "private key 2", compressed: g2Compressed, want: g2EVMAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := mustHex(t, tt.compressed)

			// The constants themselves must agree with go-ethereum.
			ecdsaPub, err := crypto.DecompressPubkey(key)
			require.NoError(t, err)
			require.Equal(t, tt.want, strings.ToLower(crypto.PubkeyToAddress(*ecdsaPub).Hex()))

			got, err := DeriveEVMAddress(key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 42)
		})
	}
}

func TestDeriveEVMAddress_MatchesGoEthereum(t *testing.T) {
	for i := 0; i < 32; i++ {
		priv, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		compressed := priv.PubKey().SerializeCompressed()

		got, err := DeriveEVMAddress(compressed)
		require.NoError(t, err)

		ecdsaPub, err := crypto.DecompressPubkey(compressed)
		require.NoError(t, err)
		want := strings.ToLower(crypto.PubkeyToAddress(*ecdsaPub).Hex())

		assert.Equal(t, want, got)
		assert.Regexp(t, evmAddressPattern, got)
	}
}

func TestDecompress_RoundTrip(t *testing.T) {
	for i := 0; i < 64; i++ {
		priv, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		compressed := priv.PubKey().SerializeCompressed()

		uncompressed, err := Decompress(compressed)
		require.NoError(t, err)

		// Re-derive the tag from the parity of y.
		manual := make([]byte, CompressedLen)
		manual[0] = 0x02 | (uncompressed[64] & 1)
		copy(manual[1:], uncompressed[1:33])
		assert.Equal(t, compressed, manual)

		recompressed, err := Compress(uncompressed)
		require.NoError(t, err)
		assert.Equal(t, compressed, recompressed)
	}
}

func TestDeriveEVMAddress_Deterministic(t *testing.T) {
	key := mustHex(t, g2Compressed)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, err := DeriveEVMAddress(key)
			assert.NoError(t, err)
			results[i] = addr
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, g2EVMAddress, r)
	}
	assert.Equal(t, g2Compressed, hex.EncodeToString(key), "input must not be mutated")
}

func TestDecompress_InvalidInput(t *testing.T) {
	valid := mustHex(t, gCompressed)

	wrongTag := append([]byte{}, valid...)
	wrongTag[0] = 0x04

	xTooBig := append([]byte{0x02}, mustHex(t, fieldPrimeHex)...)

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "32 bytes", input: valid[1:]},
		{name: "34 bytes", input: append(append([]byte{}, valid...), 0x00)},
		{name: "tag 0x04", input: wrongTag},
		{name: "tag 0x00", input: append([]byte{0x00}, valid[1:]...)},
		{name: "x equals field prime", input: xTooBig},
		{name: "uncompressed key", input: mustUncompressed(t, valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decompress(tt.input)
			require.ErrorIs(t, err, ErrInvalidPublicKey)
			assert.Nil(t, out)

			addr, err := DeriveEVMAddress(tt.input)
			require.ErrorIs(t, err, ErrInvalidPublicKey)
			assert.Empty(t, addr)
		})
	}
}

func TestDecompress_XNotOnCurve(t *testing.T) {
	// Roughly half of all x values have no matching y. Walk small x values and
	// check every rejection is reported as ErrInvalidPublicKey.
	rejected := 0
	for x := 1; x <= 32; x++ {
		key := make([]byte, CompressedLen)
		key[0] = 0x02
		key[CompressedLen-1] = byte(x)

		out, err := Decompress(key)
		if err != nil {
			require.ErrorIs(t, err, ErrInvalidPublicKey)
			assert.Nil(t, out)
			rejected++
			continue
		}
		require.Len(t, out, UncompressedLen)
		assert.False(t, bytes.Equal(out[33:], make([]byte, 32)), "y must not be zero")
	}
	assert.Greater(t, rejected, 0)
}

func TestCompressedFromAccountKey(t *testing.T) {
	compressed := mustHex(t, gCompressed)
	odd := append([]byte{}, compressed...)
	odd[0] = 0x03

	tests := []struct {
		name   string
		raw    []byte
		want   []byte
		wantOK bool
	}{
		{name: "sui secp256k1 flag stripped", raw: append([]byte{0x01}, compressed...), want: compressed, wantOK: true},
		{name: "bare compressed even", raw: compressed, want: compressed, wantOK: true},
		{name: "bare compressed odd", raw: odd, want: odd, wantOK: true},
		{name: "ed25519 flagged key", raw: append([]byte{0x00}, make([]byte, 32)...)},
		{name: "raw ed25519 key", raw: make([]byte, 32)},
		{name: "secp256r1 flagged key", raw: append([]byte{0x02}, compressed...)},
		{name: "34 bytes wrong flag", raw: append([]byte{0x05}, compressed...)},
		{name: "33 bytes wrong tag", raw: append([]byte{0x04}, compressed[1:]...)},
		{name: "empty", raw: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CompressedFromAccountKey(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEVMAddressForAccount(t *testing.T) {
	compressed := mustHex(t, gCompressed)

	addr, err := EVMAddressForAccount(append([]byte{0x01}, compressed...))
	require.NoError(t, err)
	assert.Equal(t, gEVMAddress, addr)

	addr, err = EVMAddressForAccount(compressed)
	require.NoError(t, err)
	assert.Equal(t, gEVMAddress, addr)

	addr, err = EVMAddressForAccount(append([]byte{0x00}, make([]byte, 32)...))
	require.NoError(t, err, "other schemes are not an error")
	assert.Empty(t, addr)

	offCurve := append([]byte{0x01, 0x02}, mustHex(t, fieldPrimeHex)...)
	addr, err = EVMAddressForAccount(offCurve)
	require.ErrorIs(t, err, ErrInvalidPublicKey)
	assert.Empty(t, addr)
}

func mustUncompressed(t *testing.T, compressed []byte) []byte {
	t.Helper()
	out, err := Decompress(compressed)
	require.NoError(t, err)
	return out
}
