package suikeys

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pattonkan/sui-go/suisigner"
)

var ErrMalformedSignature = errors.New("malformed serialized signature")

// signatureLen is the raw signature size for every single-key scheme.
const signatureLen = 64

// SerializedSignature is flag || signature || public key.
// For schemes without a fixed layout only Scheme and Raw are set.
type SerializedSignature struct {
	Scheme    Scheme
	Signature []byte
	PublicKey []byte
	Raw       []byte

	sui *suisigner.Signature
}

// Base64 is the wire form wallets return.
func (s *SerializedSignature) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Raw)
}

// Address returns the signer's Sui address when the scheme carries a public key.
func (s *SerializedSignature) Address() (string, error) {
	return AddressFromPublicKey(s.Scheme, s.PublicKey)
}

// Sui is the RPC form, nil for schemes sui-go cannot carry.
func (s *SerializedSignature) Sui() *suisigner.Signature {
	return s.sui
}

func ParseSerializedSignature(encoded string) (*SerializedSignature, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return ParseSerializedSignatureBytes(raw)
}

func ParseSerializedSignatureBytes(raw []byte) (*SerializedSignature, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedSignature)
	}
	scheme := Scheme(raw[0])
	out := &SerializedSignature{Scheme: scheme, Raw: raw}

	if scheme.PublicKeyLen() == 0 {
		if !scheme.Known() {
			return nil, fmt.Errorf("%w: unknown scheme flag 0x%02x", ErrMalformedSignature, raw[0])
		}
		return out, nil
	}

	// suisigner.Signature decodes from the JSON base64 form and checks the
	// length for the scheme.
	quoted, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	var sig suisigner.Signature
	if err := sig.UnmarshalJSON(quoted); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSignature, scheme, err)
	}
	body := sig.Bytes()
	out.Signature = body[1 : 1+signatureLen]
	out.PublicKey = body[1+signatureLen:]
	out.sui = &sig
	return out, nil
}
