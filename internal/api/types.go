package api

import (
	"github.com/waapdemo/sui-demo-backend/internal/onchain"
	"github.com/waapdemo/sui-demo-backend/internal/session"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type WalletDTO struct {
	Name     string           `json:"name"`
	Version  string           `json:"version"`
	Icon     string           `json:"icon"`
	Chains   []wallet.Chain   `json:"chains"`
	Features []wallet.Feature `json:"features"`
	Accounts int              `json:"accounts"`
}

type ConnectRequest struct {
	Wallet string `json:"wallet"`
}

type ConnectResponse struct {
	Account AccountDTO           `json:"account"`
	Status  session.WalletStatus `json:"status"`
}

type AccountDTO struct {
	Address   string           `json:"address"`
	PublicKey string           `json:"publicKey"`
	Chains    []wallet.Chain   `json:"chains"`
	Features  []wallet.Feature `json:"features"`
	Label     string           `json:"label,omitempty"`
}

type NetworksResponse struct {
	Networks []session.Network `json:"networks"`
	Current  string            `json:"current"`
}

type SelectNetworkRequest struct {
	Network string `json:"network"`
}

type SwitchChainRequest struct {
	Chain wallet.Chain `json:"chain"`
}

// SignMessageRequest carries the message as UTF-8 text unless Encoding is
// "base64".
type SignMessageRequest struct {
	Message  string `json:"message"`
	Encoding string `json:"encoding,omitempty"`
}

type SignMessageResponse struct {
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

type VerifyMessageRequest struct {
	Message   string `json:"message"`
	Encoding  string `json:"encoding,omitempty"`
	Signature string `json:"signature"`
	Address   string `json:"address,omitempty"`
}

type VerifyTransactionRequest struct {
	Bytes     string `json:"bytes"`
	Signature string `json:"signature"`
	Address   string `json:"address,omitempty"`
}

type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Address string `json:"address,omitempty"`
	Scheme  string `json:"scheme,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type TransactionRequest struct {
	Kind string `json:"kind"`
}

type SignTransactionResponse struct {
	Kind      onchain.DemoKind `json:"kind"`
	Bytes     string           `json:"bytes"`
	Signature string           `json:"signature"`
}

type ExecuteTransactionResponse struct {
	Kind      onchain.DemoKind `json:"kind"`
	Digest    string           `json:"digest"`
	Status    string           `json:"status"`
	Bytes     string           `json:"bytes,omitempty"`
	Signature string           `json:"signature,omitempty"`
}

type EmailResponse struct {
	Email string `json:"email"`
}

type BalancesResponse struct {
	Network  string            `json:"network"`
	Address  string            `json:"address"`
	Balances []onchain.Balance `json:"balances"`
}

type FaucetRequest struct {
	Address string `json:"address,omitempty"`
}

type FaucetResponse struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Status  string `json:"status"`
}
