package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waapdemo/sui-demo-backend/internal/pubkey"
	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
)

type cli struct {
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "waapctl",
		Short:         "Offline key tools for the WaaP Sui demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		&cobra.Command{
			Use:   "evm-address <pubkey-hex>",
			Short: "Derive the EVM address of a secp256k1 public key",
			Long: `Derive the EVM address controlled by a secp256k1 public key.

The key may be 33-byte compressed, or 34 bytes with the Sui 0x01 scheme flag
as reported by wallet accounts.

Examples:
  waapctl evm-address 0x0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
  waapctl evm-address 010279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798`,
			Args: cobra.ExactArgs(1),
			RunE: c.runEVMAddress,
		},
		&cobra.Command{
			Use:   "decompress <compressed-hex>",
			Short: "Expand a 33-byte compressed secp256k1 key to 65 bytes",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runDecompress,
		},
		newSuiAddressCmd(c),
		newKeygenCmd(c),
	)
	return root
}

func newSuiAddressCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sui-address <pubkey-hex>",
		Short: "Derive the Sui address of a public key",
		Long: `Derive the Sui address blake2b256(flag || pubkey).

A key already prefixed with the scheme flag is accepted as is; otherwise
--scheme selects the flag.`,
		Args: cobra.ExactArgs(1),
		RunE: c.runSuiAddress,
	}
	cmd.Flags().String("scheme", suikeys.SchemeSecp256k1.String(), "signature scheme (ED25519, Secp256k1, Secp256r1)")
	return cmd
}

func newKeygenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair usable as WAAP_PRIVATE_KEY_HEX",
		Long: `Generate a keypair for the demo wallet account.

With --mnemonic the key is derived from a new BIP-39 phrase at the default Sui
wallet path, which is only defined for ED25519 here.

Examples:
  waapctl keygen
  waapctl keygen --scheme secp256r1 --json
  waapctl keygen --scheme ed25519 --mnemonic`,
		Args: cobra.NoArgs,
		RunE: c.runKeygen,
	}
	cmd.Flags().String("scheme", suikeys.SchemeSecp256k1.String(), "signature scheme (ED25519, Secp256k1, Secp256r1)")
	cmd.Flags().Bool("mnemonic", false, "derive the key from a new mnemonic phrase")
	return cmd
}

func decodeHexArg(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("argument is not hex: %w", err)
	}
	return b, nil
}

func (c *cli) runEVMAddress(cmd *cobra.Command, args []string) error {
	raw, err := decodeHexArg(args[0])
	if err != nil {
		return err
	}
	addr, err := pubkey.EVMAddressForAccount(raw)
	if err != nil {
		return err
	}
	if addr == "" {
		return errors.New("not a secp256k1 public key")
	}
	return c.print(cmd.OutOrStdout(), map[string]string{"evmAddress": addr}, addr)
}

func (c *cli) runDecompress(cmd *cobra.Command, args []string) error {
	raw, err := decodeHexArg(args[0])
	if err != nil {
		return err
	}
	full, err := pubkey.Decompress(raw)
	if err != nil {
		return err
	}
	out := "0x" + hex.EncodeToString(full)
	return c.print(cmd.OutOrStdout(), map[string]string{"uncompressed": out}, out)
}

func (c *cli) runSuiAddress(cmd *cobra.Command, args []string) error {
	raw, err := decodeHexArg(args[0])
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("scheme")
	scheme, err := suikeys.ParseScheme(name)
	if err != nil {
		return err
	}

	if n := scheme.PublicKeyLen(); n > 0 && len(raw) == n+1 && raw[0] == byte(scheme) {
		raw = raw[1:]
	}
	addr, err := suikeys.AddressFromPublicKey(scheme, raw)
	if err != nil {
		return err
	}
	return c.print(cmd.OutOrStdout(), map[string]string{"address": addr, "scheme": scheme.String()}, addr)
}

func (c *cli) runKeygen(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("scheme")
	scheme, err := suikeys.ParseScheme(name)
	if err != nil {
		return err
	}
	withMnemonic, _ := cmd.Flags().GetBool("mnemonic")

	var (
		kp       *suikeys.Keypair
		mnemonic string
	)
	if withMnemonic {
		if mnemonic, err = suikeys.NewMnemonic(); err != nil {
			return err
		}
		kp, err = suikeys.KeypairFromMnemonic(scheme, mnemonic)
	} else {
		kp, err = suikeys.GenerateKeypair(scheme)
	}
	if err != nil {
		return err
	}

	out := map[string]string{
		"scheme":     scheme.String(),
		"address":    kp.Address(),
		"publicKey":  hex.EncodeToString(kp.PublicKey()),
		"privateKey": hex.EncodeToString(kp.PrivateKey()),
	}
	if mnemonic != "" {
		out["mnemonic"] = mnemonic
	}
	if evm, err := pubkey.EVMAddressForAccount(kp.SuiPublicKey()); err == nil && evm != "" {
		out["evmAddress"] = evm
	}
	if c.jsonOut {
		return c.print(cmd.OutOrStdout(), out, "")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scheme:      %s\n", out["scheme"])
	fmt.Fprintf(w, "Address:     %s\n", out["address"])
	fmt.Fprintf(w, "Public key:  %s\n", out["publicKey"])
	if evm := out["evmAddress"]; evm != "" {
		fmt.Fprintf(w, "EVM address: %s\n", evm)
	}
	fmt.Fprintf(w, "\nWAAP_KEY_SCHEME=%s\n", out["scheme"])
	if mnemonic != "" {
		fmt.Fprintf(w, "WAAP_MNEMONIC=%q\n", mnemonic)
		return nil
	}
	fmt.Fprintf(w, "WAAP_PRIVATE_KEY_HEX=%s\n", out["privateKey"])
	return nil
}

func (c *cli) print(w io.Writer, v interface{}, text string) error {
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
