package verify

import (
	"encoding/base64"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pattonkan/sui-go/suisigner/suicrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
)

func TestPersonalMessage(t *testing.T) {
	for _, scheme := range []suikeys.Scheme{suikeys.SchemeEd25519, suikeys.SchemeSecp256k1, suikeys.SchemeSecp256r1} {
		t.Run(scheme.String(), func(t *testing.T) {
			kp, err := suikeys.GenerateKeypair(scheme)
			require.NoError(t, err)

			msg := []byte("Hello from WaaP Sui demo!")
			sig, err := kp.SignPersonalMessage(msg)
			require.NoError(t, err)

			signer, err := PersonalMessage(msg, sig)
			require.NoError(t, err)
			assert.Equal(t, scheme, signer.Scheme)
			assert.Equal(t, kp.Address(), signer.Address)
			assert.NoError(t, ForAddress(signer, kp.Address()))

			_, err = PersonalMessage([]byte("tampered"), sig)
			assert.ErrorIs(t, err, ErrInvalidSignature)

			// A personal message signature must not verify as a transaction.
			_, err = Transaction(msg, sig)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestTransaction(t *testing.T) {
	kp, err := suikeys.GenerateKeypair(suikeys.SchemeSecp256k1)
	require.NoError(t, err)

	tx := []byte{0x00, 0x01, 0x02, 0x03}
	sig, err := kp.SignTransaction(tx)
	require.NoError(t, err)

	signer, err := Transaction(tx, sig)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), signer.Address)

	other, err := suikeys.GenerateKeypair(suikeys.SchemeEd25519)
	require.NoError(t, err)
	assert.ErrorIs(t, ForAddress(signer, other.Address()), ErrInvalidSignature)
}

func TestSecp256r1(t *testing.T) {
	kp, err := suikeys.GenerateKeypair(suikeys.SchemeSecp256r1)
	require.NoError(t, err)

	msg := []byte("passkey-ish")
	sig, err := kp.SignPersonalMessage(msg)
	require.NoError(t, err)

	signer, err := PersonalMessage(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, suikeys.SchemeSecp256r1, signer.Scheme)
	assert.Equal(t, kp.PublicKey(), signer.PublicKey)
	assert.Equal(t, kp.Address(), signer.Address)

	_, err = Transaction(msg, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSecp256k1_RejectsHighS(t *testing.T) {
	kp, err := suikeys.GenerateKeypair(suikeys.SchemeSecp256k1)
	require.NoError(t, err)

	tx := []byte("high-s")
	sig, err := kp.SignTransaction(tx)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)

	// (r, n-s) is the malleated twin of (r, s) and passes plain ECDSA.
	var s secp256k1.ModNScalar
	s.SetByteSlice(raw[33:65])
	s.Negate()
	malleated := append([]byte{}, raw...)
	s.PutBytesUnchecked(malleated[33:65])

	pub, err := suicrypto.Secp256k1PubKeyFromBytes(kp.PublicKey())
	require.NoError(t, err)
	require.True(t, pub.Verify(suikeys.TransactionDigest(tx), malleated[1:65]))

	_, err = Transaction(tx, base64.StdEncoding.EncodeToString(malleated))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = Transaction(tx, sig)
	assert.NoError(t, err)
}

func TestUnverifiableSchemes(t *testing.T) {
	zk := base64.StdEncoding.EncodeToString(append([]byte{byte(suikeys.SchemeZkLogin)}, make([]byte, 200)...))
	_, err := PersonalMessage([]byte("m"), zk)
	assert.ErrorIs(t, err, ErrZkLoginRequiresOnChain)

	multi := base64.StdEncoding.EncodeToString(append([]byte{byte(suikeys.SchemeMultiSig)}, make([]byte, 200)...))
	_, err = PersonalMessage([]byte("m"), multi)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = PersonalMessage([]byte("m"), "not-base64!")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
