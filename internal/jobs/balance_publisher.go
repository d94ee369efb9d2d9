package jobs

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/onchain"
	"github.com/waapdemo/sui-demo-backend/internal/session"
	"github.com/waapdemo/sui-demo-backend/internal/store"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

// AccountSource reports the connected account and the selected network.
type AccountSource interface {
	Current() (wallet.Wallet, wallet.Account, error)
	Network() session.Network
}

type BalanceSource interface {
	Balances(ctx context.Context, network, address string) ([]onchain.Balance, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// BalanceUpdate is published on store.ChannelBalances.
type BalanceUpdate struct {
	Network   string            `json:"network"`
	Address   string            `json:"address"`
	Balances  []onchain.Balance `json:"balances"`
	Timestamp int64             `json:"timestamp"`
}

type BalancePublisherConfig struct {
	Interval time.Duration
}

func DefaultBalancePublisherConfig() BalancePublisherConfig {
	return BalancePublisherConfig{Interval: 15 * time.Second}
}

// BalancePublisher polls the connected account's balances and publishes them
// whenever the account, network or amounts change.
type BalancePublisher struct {
	accounts AccountSource
	chain    BalanceSource
	bus      Publisher
	logger   *zap.SugaredLogger
	config   BalancePublisherConfig

	mu        sync.Mutex
	last      *BalanceUpdate
	cancelCtx context.CancelFunc
}

func NewBalancePublisher(accounts AccountSource, chain BalanceSource, bus Publisher, logger *zap.SugaredLogger, config BalancePublisherConfig) *BalancePublisher {
	if config.Interval <= 0 {
		config.Interval = DefaultBalancePublisherConfig().Interval
	}
	return &BalancePublisher{
		accounts: accounts,
		chain:    chain,
		bus:      bus,
		logger:   logger,
		config:   config,
	}
}

// Start polls until ctx ends and returns ctx.Err().
func (p *BalancePublisher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelCtx = cancel
	p.mu.Unlock()

	p.logger.Infow("Starting balance publisher", "interval", p.config.Interval)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Balance publisher stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

func (p *BalancePublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCtx != nil {
		p.cancelCtx()
	}
}

// Poll runs one fetch-and-publish round. It reports whether an update was
// published.
func (p *BalancePublisher) Poll(ctx context.Context) bool {
	_, acct, err := p.accounts.Current()
	if err != nil {
		if !errors.Is(err, wallet.ErrNotConnected) {
			p.logger.Debugw("No account to poll", "error", err)
		}
		p.reset()
		return false
	}
	network := p.accounts.Network().Name

	balances, err := p.chain.Balances(ctx, network, acct.Address)
	if err != nil {
		p.logger.Warnw("Failed to poll balances", "network", network, "address", acct.Address, "error", err)
		return false
	}

	update := &BalanceUpdate{
		Network:   network,
		Address:   acct.Address,
		Balances:  balances,
		Timestamp: time.Now().Unix(),
	}
	if !p.changed(update) {
		return false
	}
	if err := p.bus.Publish(ctx, store.ChannelBalances, update); err != nil {
		p.logger.Warnw("Failed to publish balances", "address", acct.Address, "error", err)
		return false
	}

	p.mu.Lock()
	p.last = update
	p.mu.Unlock()
	p.logger.Debugw("Published balances", "network", network, "address", acct.Address, "coins", len(balances))
	return true
}

func (p *BalancePublisher) changed(next *BalanceUpdate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return true
	}
	return p.last.Network != next.Network ||
		p.last.Address != next.Address ||
		!reflect.DeepEqual(p.last.Balances, next.Balances)
}

func (p *BalancePublisher) reset() {
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()
}
