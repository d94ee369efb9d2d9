// Package session tracks which wallet and account the dApp is connected to,
// which network it targets, and publishes a fresh status on every change.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/pubkey"
	"github.com/waapdemo/sui-demo-backend/internal/store"
	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrSwitchNotSupported  = errors.New("network switching not supported by this wallet")
	ErrSwitchInProgress    = errors.New("network switch already in progress")
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrNoAuthorizedAccount = errors.New("wallet returned no authorized account")
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Publisher broadcasts status snapshots.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// DerivationRecorder counts EVM derivation outcomes.
type DerivationRecorder interface {
	RecordEVMDerivation(ctx context.Context, outcome string)
}

// WalletStatus is the account view rebuilt from scratch for every request
// and every change notification. EVMAddress is only set for secp256k1 accounts.
type WalletStatus struct {
	Status      Status           `json:"status"`
	Wallet      string           `json:"wallet,omitempty"`
	Network     string           `json:"network"`
	Chain       wallet.Chain     `json:"chain"`
	Address     string           `json:"address,omitempty"`
	PublicKey   string           `json:"publicKey,omitempty"`
	Scheme      string           `json:"scheme,omitempty"`
	EVMAddress  string           `json:"evmAddress,omitempty"`
	IsSwitching bool             `json:"isSwitching"`
	Features    []wallet.Feature `json:"features,omitempty"`
}

type Manager struct {
	cfg      Config
	registry *wallet.Registry
	kv       kv.Store
	bus      Publisher
	recorder DerivationRecorder
	logger   *zap.SugaredLogger

	mu           sync.Mutex
	status       Status
	current      wallet.Wallet
	account      *wallet.Account
	network      string
	switching    bool
	stopEvents   func()
	stopRegistry func()
}

func NewManager(cfg Config, registry *wallet.Registry, store kv.Store, bus Publisher, recorder DerivationRecorder, logger *zap.SugaredLogger) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		registry: registry,
		kv:       store,
		bus:      bus,
		recorder: recorder,
		logger:   logger,
		status:   StatusDisconnected,
		network:  cfg.DefaultNetwork,
	}, nil
}

func (m *Manager) Networks() []Network {
	return m.cfg.Networks
}

func (m *Manager) Network() Network {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := m.cfg.network(m.network)
	return n
}

// SelectNetwork changes the dApp's target network without touching the wallet.
func (m *Manager) SelectNetwork(ctx context.Context, name string) error {
	if _, ok := m.cfg.network(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	m.mu.Lock()
	changed := m.network != name
	m.network = name
	m.mu.Unlock()

	if changed {
		m.logger.Infow("Network selected", "network", name)
		m.publish(ctx)
	}
	return nil
}

func (m *Manager) Wallets() []wallet.Wallet {
	return m.registry.List()
}

// Current returns the connected wallet and account.
func (m *Manager) Current() (wallet.Wallet, wallet.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusConnected || m.current == nil || m.account == nil {
		return nil, wallet.Account{}, wallet.ErrNotConnected
	}
	return m.current, *m.account, nil
}

// Connect asks the named wallet for authorization and adopts its first account.
func (m *Manager) Connect(ctx context.Context, name string) (*wallet.Account, error) {
	return m.connect(ctx, name, "", false)
}

func (m *Manager) connect(ctx context.Context, name, wantAddress string, silent bool) (*wallet.Account, error) {
	w, ok := m.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s %w", name, ErrWalletNotFound)
	}
	connector, ok := w.(wallet.Connector)
	if !ok || !wallet.Supports(w, wallet.FeatureConnect) {
		return nil, fmt.Errorf("%w: %s", wallet.ErrFeatureNotSupported, wallet.FeatureConnect)
	}

	m.mu.Lock()
	if m.status == StatusConnecting {
		m.mu.Unlock()
		return nil, errors.New("connection already in progress")
	}
	prevStatus := m.status
	m.status = StatusConnecting
	m.mu.Unlock()
	m.publish(ctx)

	out, err := connector.Connect(ctx, wallet.ConnectInput{Silent: silent})
	var acct *wallet.Account
	if err == nil {
		acct = pickAccount(out.Accounts, wantAddress)
		if acct == nil {
			err = ErrNoAuthorizedAccount
		}
	}
	if err != nil {
		m.mu.Lock()
		m.status = prevStatus
		m.mu.Unlock()
		m.publish(ctx)
		return nil, err
	}

	m.adopt(w, acct)
	m.remember(ctx, name, acct.Address)
	m.logger.Infow("Wallet connected", "wallet", name, "address", acct.Address, "silent", silent)
	m.publish(ctx)
	return acct, nil
}

func pickAccount(accounts []wallet.Account, address string) *wallet.Account {
	for i := range accounts {
		if address == "" || accounts[i].Address == address {
			a := accounts[i]
			return &a
		}
	}
	return nil
}

func (m *Manager) adopt(w wallet.Wallet, acct *wallet.Account) {
	var stop func()
	if emitter, ok := w.(wallet.EventEmitter); ok && wallet.Supports(w, wallet.FeatureEvents) {
		stop = emitter.On(m.onWalletChange(w))
	}

	m.mu.Lock()
	if m.stopEvents != nil {
		m.stopEvents()
	}
	m.current = w
	m.account = acct
	m.status = StatusConnected
	m.stopEvents = stop
	m.mu.Unlock()
}

// onWalletChange reacts to wallet-initiated changes of accounts or chain.
func (m *Manager) onWalletChange(w wallet.Wallet) func(wallet.ChangeEvent) {
	return func(ev wallet.ChangeEvent) {
		ctx := context.Background()

		m.mu.Lock()
		if m.current != w {
			m.mu.Unlock()
			return
		}
		if ev.Accounts != nil {
			if len(ev.Accounts) == 0 {
				m.clearLocked()
			} else {
				a := ev.Accounts[0]
				m.account = &a
				m.status = StatusConnected
			}
		}
		if ev.Chain != nil {
			if _, ok := m.cfg.network(ev.Chain.Network()); ok {
				m.network = ev.Chain.Network()
			}
		}
		m.mu.Unlock()

		m.publish(ctx)
	}
}

func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	w := m.current
	m.clearLocked()
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	if d, ok := w.(wallet.Disconnector); ok && wallet.Supports(w, wallet.FeatureDisconnect) {
		if err := d.Disconnect(ctx); err != nil {
			m.logger.Warnw("Wallet disconnect failed", "wallet", w.Name(), "error", err)
		}
	}
	m.forget(ctx)
	m.logger.Infow("Wallet disconnected", "wallet", w.Name())
	m.publish(ctx)
	return nil
}

func (m *Manager) clearLocked() {
	if m.stopEvents != nil {
		m.stopEvents()
		m.stopEvents = nil
	}
	m.current = nil
	m.account = nil
	m.status = StatusDisconnected
	m.switching = false
}

// SwitchNetwork asks the wallet to change chain and, once it has, selects the
// matching network when one is configured.
func (m *Manager) SwitchNetwork(ctx context.Context, chain wallet.Chain) error {
	m.mu.Lock()
	w := m.current
	switch {
	case w == nil:
		m.mu.Unlock()
		return wallet.ErrNotConnected
	case m.switching:
		m.mu.Unlock()
		return ErrSwitchInProgress
	}
	switcher, ok := w.(wallet.ChainSwitcher)
	if !ok || !wallet.Supports(w, wallet.FeatureSwitchChain) {
		m.mu.Unlock()
		return ErrSwitchNotSupported
	}
	m.switching = true
	m.mu.Unlock()
	m.publish(ctx)

	err := switcher.SwitchChain(ctx, chain)

	m.mu.Lock()
	m.switching = false
	if err == nil {
		if _, ok := m.cfg.network(chain.Network()); ok {
			m.network = chain.Network()
		}
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warnw("Network switch failed", "chain", chain, "error", err)
	} else {
		m.logger.Infow("Network switched", "chain", chain)
	}
	m.publish(ctx)
	return err
}

// Status builds the current view. The EVM address is derived anew each time.
func (m *Manager) Status(ctx context.Context) WalletStatus {
	m.mu.Lock()
	st := WalletStatus{
		Status:      m.status,
		Network:     m.network,
		IsSwitching: m.switching,
	}
	if n, ok := m.cfg.network(m.network); ok {
		st.Chain = n.Chain()
	}
	var acct *wallet.Account
	if m.current != nil {
		st.Wallet = m.current.Name()
		st.Features = m.current.Features()
	}
	if m.account != nil {
		a := *m.account
		acct = &a
	}
	m.mu.Unlock()

	if acct == nil {
		return st
	}
	st.Address = acct.Address
	st.PublicKey = hex.EncodeToString(acct.PublicKey)
	st.Scheme = schemeName(acct.PublicKey)
	st.EVMAddress = m.evmAddress(ctx, acct)
	return st
}

func schemeName(pk []byte) string {
	if len(pk) == 0 {
		return ""
	}
	s := suikeys.Scheme(pk[0])
	if n := s.PublicKeyLen(); n > 0 && len(pk) == n+1 {
		return s.String()
	}
	return ""
}

func (m *Manager) evmAddress(ctx context.Context, acct *wallet.Account) string {
	addr, err := pubkey.EVMAddressForAccount(acct.PublicKey)
	switch {
	case err != nil:
		m.logger.Warnw("Failed to derive EVM address", "address", acct.Address, "error", err)
		m.record(ctx, "invalid")
		return ""
	case addr == "":
		m.record(ctx, "not_applicable")
	default:
		m.record(ctx, "derived")
	}
	return addr
}

func (m *Manager) record(ctx context.Context, outcome string) {
	if m.recorder != nil {
		m.recorder.RecordEVMDerivation(ctx, outcome)
	}
}

func (m *Manager) publish(ctx context.Context) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, store.ChannelStatus, m.Status(ctx)); err != nil {
		m.logger.Warnw("Failed to publish wallet status", "error", err)
	}
}

// Close stops listening to the connected wallet and the registry.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopEvents != nil {
		m.stopEvents()
		m.stopEvents = nil
	}
	if m.stopRegistry != nil {
		m.stopRegistry()
		m.stopRegistry = nil
	}
}
