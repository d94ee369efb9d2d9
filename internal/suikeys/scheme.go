// Package suikeys holds Sui account key material: signature scheme flags,
// keypairs, addresses, intent messages and serialized signatures.
package suikeys

import (
	"fmt"
	"strings"

	"github.com/pattonkan/sui-go/suisigner/suicrypto"
)

// Scheme is the one-byte Sui signature scheme flag.
type Scheme byte

const (
	SchemeEd25519   = Scheme(suicrypto.KeySchemeFlagEd25519)
	SchemeSecp256k1 = Scheme(suicrypto.KeySchemeFlagSecp256k1)
	SchemeSecp256r1 = Scheme(suicrypto.KeySchemeFlagSecp256r1)
	SchemeMultiSig  = Scheme(suicrypto.KeySchemeFlagMultiSig)
	SchemeZkLogin   = Scheme(suicrypto.KeySchemeFlagZkLoginAuthenticator)
	SchemePasskey   = Scheme(suicrypto.KeySchemeFlagPasskeyAuthenticator)
)

var schemeNames = map[Scheme]string{
	SchemeEd25519:   "ED25519",
	SchemeSecp256k1: "Secp256k1",
	SchemeSecp256r1: "Secp256r1",
	SchemeMultiSig:  "MultiSig",
	SchemeZkLogin:   "ZkLogin",
	SchemePasskey:   "Passkey",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", byte(s))
}

// Known reports whether s is a flag Sui assigns.
func (s Scheme) Known() bool {
	_, ok := schemeNames[s]
	return ok
}

func (s Scheme) Flag() suicrypto.KeySchemeFlag { return suicrypto.KeySchemeFlag(s) }

// PublicKeyLen is the raw public key size for single-key schemes, 0 otherwise.
func (s Scheme) PublicKeyLen() int {
	switch s {
	case SchemeEd25519:
		return suicrypto.KeypairEd25519PublicKeySize
	case SchemeSecp256k1:
		return suicrypto.KeypairSecp256k1PublicKeySize
	case SchemeSecp256r1:
		return suicrypto.KeypairSecp256r1PublicKeySize
	default:
		return 0
	}
}

// ParseScheme accepts the scheme name case-insensitively.
func ParseScheme(name string) (Scheme, error) {
	for s, n := range schemeNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown signature scheme %q", name)
}
