// Package wallet models the Sui wallet-standard surface: chains, features,
// accounts, the wallet interface with its optional feature interfaces, and
// the process-wide registry wallets announce themselves on.
package wallet

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrFeatureNotSupported = errors.New("feature not supported by wallet")
	ErrUnknownChain        = errors.New("unknown chain")
	ErrUserRejected        = errors.New("request rejected by user")
	ErrAccountMismatch     = errors.New("account does not belong to wallet")
)

type Chain string

const (
	ChainMainnet  Chain = "sui:mainnet"
	ChainTestnet  Chain = "sui:testnet"
	ChainDevnet   Chain = "sui:devnet"
	ChainLocalnet Chain = "sui:localnet"
)

var AllChains = []Chain{ChainMainnet, ChainTestnet, ChainDevnet, ChainLocalnet}

// Network strips the "sui:" namespace.
func (c Chain) Network() string {
	return strings.TrimPrefix(string(c), "sui:")
}

func (c Chain) Valid() bool {
	for _, known := range AllChains {
		if c == known {
			return true
		}
	}
	return false
}

func ChainForNetwork(network string) Chain {
	return Chain("sui:" + network)
}

type Feature string

const (
	FeatureConnect                        Feature = "standard:connect"
	FeatureDisconnect                     Feature = "standard:disconnect"
	FeatureEvents                         Feature = "standard:events"
	FeatureSignPersonalMessage            Feature = "sui:signPersonalMessage"
	FeatureSignTransaction                Feature = "sui:signTransaction"
	FeatureSignAndExecuteTransaction      Feature = "sui:signAndExecuteTransaction"
	FeatureSignTransactionBlock           Feature = "sui:signTransactionBlock"
	FeatureSignAndExecuteTransactionBlock Feature = "sui:signAndExecuteTransactionBlock"
	FeatureSwitchChain                    Feature = "sui:switchChain"
	FeatureRequestEmail                   Feature = "waap:requestEmail"
)

// Account is a wallet-standard account. PublicKey carries the Sui scheme flag
// for schemes that have one.
type Account struct {
	Address   string    `json:"address"`
	PublicKey []byte    `json:"publicKey"`
	Chains    []Chain   `json:"chains"`
	Features  []Feature `json:"features"`
	Label     string    `json:"label,omitempty"`
}

type Wallet interface {
	Name() string
	Version() string
	Icon() string
	Chains() []Chain
	Features() []Feature
	Accounts() []Account
}

type ConnectInput struct {
	// Silent only returns already authorized accounts and never prompts.
	Silent bool
}

type ConnectOutput struct {
	Accounts []Account
}

type Connector interface {
	Connect(ctx context.Context, in ConnectInput) (*ConnectOutput, error)
}

type Disconnector interface {
	Disconnect(ctx context.Context) error
}

// ChangeEvent carries the properties that changed; nil fields are unchanged.
type ChangeEvent struct {
	Accounts []Account
	Chains   []Chain
	Chain    *Chain
}

type EventEmitter interface {
	On(listener func(ChangeEvent)) (unsubscribe func())
}

type SignPersonalMessageInput struct {
	Message []byte
	Account Account
	Chain   Chain
}

type SignedPersonalMessage struct {
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
}

type PersonalMessageSigner interface {
	SignPersonalMessage(ctx context.Context, in SignPersonalMessageInput) (*SignedPersonalMessage, error)
}

// SignTransactionInput carries BCS encoded TransactionData.
type SignTransactionInput struct {
	Transaction []byte
	Account     Account
	Chain       Chain
}

type SignedTransaction struct {
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
}

type TransactionSigner interface {
	SignTransaction(ctx context.Context, in SignTransactionInput) (*SignedTransaction, error)
}

type ExecutedTransaction struct {
	Digest    string `json:"digest"`
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

type TransactionExecutor interface {
	SignAndExecuteTransaction(ctx context.Context, in SignTransactionInput) (*ExecutedTransaction, error)
}

type SignedTransactionBlock struct {
	TransactionBlockBytes string `json:"transactionBlockBytes"`
	Signature             string `json:"signature"`
}

// LegacyBlockSigner is the TransactionBlock era signing feature.
type LegacyBlockSigner interface {
	SignTransactionBlock(ctx context.Context, in SignTransactionInput) (*SignedTransactionBlock, error)
}

type ExecutedTransactionBlock struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
}

type LegacyBlockExecutor interface {
	SignAndExecuteTransactionBlock(ctx context.Context, in SignTransactionInput) (*ExecutedTransactionBlock, error)
}

type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chain Chain) error
}

type EmailRequester interface {
	RequestEmail(ctx context.Context) (string, error)
}

// Supports reports whether w declares feature f.
func Supports(w Wallet, f Feature) bool {
	if w == nil {
		return false
	}
	for _, have := range w.Features() {
		if have == f {
			return true
		}
	}
	return false
}

// HasAccount reports whether addr is one of the wallet's authorized accounts.
func HasAccount(w Wallet, addr string) bool {
	for _, a := range w.Accounts() {
		if a.Address == addr {
			return true
		}
	}
	return false
}
