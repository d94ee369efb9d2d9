package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
)

// Public key of the secp256k1 secret 1.
const (
	generatorCompressed   = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	generatorUncompressed = "0x0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
	generatorEVM          = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEVMAddress(t *testing.T) {
	out, err := run(t, "evm-address", "0x"+generatorCompressed)
	require.NoError(t, err)
	assert.Equal(t, generatorEVM, out)

	out, err = run(t, "evm-address", "01"+generatorCompressed)
	require.NoError(t, err)
	assert.Equal(t, generatorEVM, out, "Sui flag prefix is accepted")

	_, err = run(t, "evm-address", "00"+strings.Repeat("11", 32))
	assert.EqualError(t, err, "not a secp256k1 public key")

	_, err = run(t, "evm-address", "zz")
	assert.Error(t, err)
}

func TestDecompress(t *testing.T) {
	out, err := run(t, "decompress", generatorCompressed)
	require.NoError(t, err)
	assert.Equal(t, generatorUncompressed, out)

	out, err = run(t, "--json", "decompress", generatorCompressed)
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, generatorUncompressed, decoded["uncompressed"])

	_, err = run(t, "decompress", "04"+strings.Repeat("00", 32))
	assert.Error(t, err)
}

func TestSuiAddress(t *testing.T) {
	raw, err := hex.DecodeString(generatorCompressed)
	require.NoError(t, err)
	want, err := suikeys.AddressFromPublicKey(suikeys.SchemeSecp256k1, raw)
	require.NoError(t, err)

	out, err := run(t, "sui-address", generatorCompressed)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = run(t, "sui-address", "01"+generatorCompressed)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	ed := strings.Repeat("ab", 32)
	out, err = run(t, "sui-address", "--scheme", "ed25519", ed)
	require.NoError(t, err)
	assert.NotEqual(t, want, out)
	assert.Len(t, out, 66)

	_, err = run(t, "sui-address", "--scheme", "ed25519", generatorCompressed)
	assert.Error(t, err, "wrong key length for the scheme")

	_, err = run(t, "sui-address", "--scheme", "bls", ed)
	assert.Error(t, err)
}

func TestKeygen(t *testing.T) {
	for _, scheme := range []suikeys.Scheme{suikeys.SchemeSecp256k1, suikeys.SchemeEd25519, suikeys.SchemeSecp256r1} {
		t.Run(scheme.String(), func(t *testing.T) {
			out, err := run(t, "--json", "keygen", "--scheme", scheme.String())
			require.NoError(t, err)

			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, scheme.String(), got["scheme"])

			secret, err := hex.DecodeString(got["privateKey"])
			require.NoError(t, err)
			kp, err := suikeys.NewKeypair(scheme, secret)
			require.NoError(t, err)
			assert.Equal(t, kp.Address(), got["address"])

			if scheme == suikeys.SchemeSecp256k1 {
				assert.Regexp(t, `^0x[0-9a-f]{40}$`, got["evmAddress"])
			} else {
				assert.Empty(t, got["evmAddress"])
			}
		})
	}

	out, err := run(t, "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, "WAAP_PRIVATE_KEY_HEX=")
	assert.Contains(t, out, "EVM address:")
}

func TestKeygen_Mnemonic(t *testing.T) {
	out, err := run(t, "--json", "keygen", "--scheme", "ed25519", "--mnemonic")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, strings.Fields(got["mnemonic"]), 12)

	kp, err := suikeys.KeypairFromMnemonic(suikeys.SchemeEd25519, got["mnemonic"])
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), got["address"])
	assert.Equal(t, hex.EncodeToString(kp.PrivateKey()), got["privateKey"])

	out, err = run(t, "keygen", "--scheme", "ed25519", "--mnemonic")
	require.NoError(t, err)
	assert.Contains(t, out, "WAAP_MNEMONIC=")
	assert.NotContains(t, out, "WAAP_PRIVATE_KEY_HEX=")

	_, err = run(t, "keygen", "--mnemonic")
	assert.Error(t, err, "secp256k1 has no mnemonic path")
}
