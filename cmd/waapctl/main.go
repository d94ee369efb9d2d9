// Command waapctl holds offline key tools for the WaaP Sui demo: EVM address
// derivation, secp256k1 key decompression, Sui address derivation and key
// generation. Nothing here touches the network.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
