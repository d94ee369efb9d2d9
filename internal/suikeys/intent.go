package suikeys

import (
	"fmt"

	"github.com/fardream/go-bcs/bcs"
	"github.com/pattonkan/sui-go/suisigner"
)

// TransactionDigest is blake2b256(intent || txBytes) for BCS TransactionData bytes.
func TransactionDigest(txBytes []byte) []byte {
	return suisigner.SigningDigest(txBytes, suisigner.IntentTransaction())
}

// PersonalMessageDigest wraps the message as a BCS vector<u8> before hashing.
func PersonalMessageDigest(message []byte) ([]byte, error) {
	body, err := bcs.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode personal message: %w", err)
	}
	return suisigner.SigningDigest(body, suisigner.IntentPersonalMessage()), nil
}
