package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/suiclient"
	"github.com/pattonkan/sui-go/suisigner"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/waap"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

const (
	SuiCoinType = "0x2::sui::SUI"
	SuiDecimal  = 9
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrNoFaucet       = errors.New("faucet not available on this network")
	ErrInvalidAddress = errors.New("invalid address")
)

// Network is one RPC endpoint the pool can talk to.
type Network struct {
	Name      string
	RPCURL    string
	FaucetURL string
}

// BalanceCache keeps short-lived balance snapshots.
type BalanceCache interface {
	GetBalances(ctx context.Context, network, address string, dest interface{}) error
	SetBalances(ctx context.Context, network, address string, value interface{}) error
	InvalidateBalances(ctx context.Context, network, address string) error
}

type Balance struct {
	CoinType  string `json:"coinType"`
	Total     string `json:"total"`
	Formatted string `json:"formatted,omitempty"`
}

type Client struct {
	network Network
	client  *suiclient.ClientImpl
}

func (c *Client) Network() Network {
	return c.network
}

// Pool holds one Sui client per configured network.
type Pool struct {
	clients map[string]*Client
	cache   BalanceCache
	logger  *zap.SugaredLogger
	group   singleflight.Group
}

func NewPool(networks []Network, cache BalanceCache, logger *zap.SugaredLogger) (*Pool, error) {
	p := &Pool{
		clients: make(map[string]*Client, len(networks)),
		cache:   cache,
		logger:  logger,
	}
	for _, n := range networks {
		if n.Name == "" || n.RPCURL == "" {
			return nil, fmt.Errorf("network %q needs a name and an RPC URL", n.Name)
		}
		if _, dup := p.clients[n.Name]; dup {
			return nil, fmt.Errorf("duplicate network %q", n.Name)
		}
		p.clients[n.Name] = &Client{network: n, client: suiclient.NewClient(n.RPCURL)}
	}
	return p, nil
}

func (p *Pool) Client(network string) (*Client, error) {
	c, ok := p.clients[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return c, nil
}

func (p *Pool) Networks() []string {
	names := make([]string, 0, len(p.clients))
	for name := range p.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Balances returns all coin balances of address. Concurrent lookups for the
// same address share one RPC call and the result is cached briefly.
func (p *Pool) Balances(ctx context.Context, network, address string) ([]Balance, error) {
	c, err := p.Client(network)
	if err != nil {
		return nil, err
	}
	addr, err := sui.AddressFromHex(address)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	if p.cache != nil {
		var cached []Balance
		if err := p.cache.GetBalances(ctx, network, address, &cached); err == nil {
			return cached, nil
		}
	}

	v, err, shared := p.group.Do(network+":"+address, func() (interface{}, error) {
		balances, err := c.client.GetAllBalances(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("failed to get all balance: %w", err)
		}
		ret := make([]Balance, 0, len(balances))
		for _, bal := range balances {
			ret = append(ret, newBalance(bal.CoinType, bal.TotalBalance.Int))
		}
		sort.Slice(ret, func(i, j int) bool { return ret[i].CoinType < ret[j].CoinType })

		if p.cache != nil {
			if err := p.cache.SetBalances(ctx, network, address, ret); err != nil {
				p.logger.Warnw("Failed to cache balances", "network", network, "address", address, "error", err)
			}
		}
		return ret, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debugw("Balance lookup coalesced", "network", network, "address", address)
	}
	return v.([]Balance), nil
}

func newBalance(coinType string, total *big.Int) Balance {
	if total == nil {
		total = new(big.Int)
	}
	b := Balance{CoinType: coinType, Total: total.String()}
	if isSuiCoin(coinType) {
		b.Formatted = FormatSUI(total)
	}
	return b
}

func isSuiCoin(coinType string) bool {
	return strings.HasSuffix(coinType, "::sui::SUI")
}

// FormatSUI renders a MIST amount in SUI.
func FormatSUI(mist *big.Int) string {
	return decimal.NewFromBigInt(mist, -SuiDecimal).String()
}

// Faucet asks the network faucet to fund address.
func (p *Pool) Faucet(ctx context.Context, network, address string) error {
	c, err := p.Client(network)
	if err != nil {
		return err
	}
	if c.network.FaucetURL == "" {
		return fmt.Errorf("%w: %s", ErrNoFaucet, network)
	}
	addr, err := sui.AddressFromHex(address)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	if err := suiclient.RequestFundFromFaucet(addr, c.network.FaucetURL); err != nil {
		return fmt.Errorf("faucet request failed: %w", err)
	}
	p.invalidate(ctx, network, address)
	p.logger.Infow("Faucet funded address", "network", network, "address", address)
	return nil
}

// Execute submits a signed transaction on the network of chain. It satisfies
// waap.Executor.
func (p *Pool) Execute(ctx context.Context, chain wallet.Chain, txBytes []byte, signature string) (*waap.ExecutionResult, error) {
	network := chain.Network()
	c, err := p.Client(network)
	if err != nil {
		return nil, err
	}
	sig, sender, err := decodeSignature(signature)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.ExecuteTransactionBlock(ctx, &suiclient.ExecuteTransactionBlockRequest{
		TxDataBytes: txBytes,
		Signatures:  []*suisigner.Signature{sig},
		Options:     &suiclient.SuiTransactionBlockResponseOptions{ShowEffects: true},
		RequestType: suiclient.TxnRequestTypeWaitForLocalExecution,
	})
	if err != nil {
		return nil, fmt.Errorf("ExecuteTransactionBlock failed: %w", err)
	}

	result := &waap.ExecutionResult{Digest: resp.Digest.String(), Status: "success"}
	if resp.Effects == nil || !resp.Effects.Data.IsSuccess() {
		result.Status = "failure"
	}
	p.invalidate(ctx, network, sender)
	p.logger.Infow("Transaction executed", "network", network, "digest", result.Digest, "status", result.Status)
	return result, nil
}

func (p *Pool) invalidate(ctx context.Context, network, address string) {
	if p.cache == nil || address == "" {
		return
	}
	if err := p.cache.InvalidateBalances(ctx, network, address); err != nil {
		p.logger.Warnw("Failed to invalidate balances", "network", network, "address", address, "error", err)
	}
}

// decodeSignature turns a base64 flag||sig||pubkey into the RPC form and
// reports the signer address.
func decodeSignature(serialized string) (*suisigner.Signature, string, error) {
	parsed, err := suikeys.ParseSerializedSignature(serialized)
	if err != nil {
		return nil, "", err
	}
	if parsed.Sui() == nil {
		return nil, "", fmt.Errorf("%w: %s signatures cannot be submitted", suikeys.ErrMalformedSignature, parsed.Scheme)
	}
	sender, err := parsed.Address()
	if err != nil {
		return nil, "", err
	}
	return parsed.Sui(), sender, nil
}
