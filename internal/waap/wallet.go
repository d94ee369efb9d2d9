// Package waap implements the WaaP wallet as an in-process wallet-standard
// wallet and the handle that owns its single live instance.
package waap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

const (
	Name    = "WaaP"
	Version = "1.0.0"
	Icon    = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHZpZXdCb3g9IjAgMCAzMiAzMiI+PGNpcmNsZSBjeD0iMTYiIGN5PSIxNiIgcj0iMTYiIGZpbGw9IiMxMTE4MjciLz48L3N2Zz4="
)

var (
	ErrNotInitialized = errors.New("WaaP wallet not initialized")
	ErrNoEmail        = errors.New("no email associated with account")
)

var features = []wallet.Feature{
	wallet.FeatureConnect,
	wallet.FeatureDisconnect,
	wallet.FeatureEvents,
	wallet.FeatureSignPersonalMessage,
	wallet.FeatureSignTransaction,
	wallet.FeatureSignAndExecuteTransaction,
	wallet.FeatureSignTransactionBlock,
	wallet.FeatureSignAndExecuteTransactionBlock,
	wallet.FeatureSwitchChain,
	wallet.FeatureRequestEmail,
}

// ExecutionResult is what the network reports for a submitted transaction.
type ExecutionResult struct {
	Digest string
	Status string
}

// Executor submits signed transactions to a Sui network.
type Executor interface {
	Execute(ctx context.Context, chain wallet.Chain, txBytes []byte, signature string) (*ExecutionResult, error)
}

type Wallet struct {
	opts   Options
	kp     *suikeys.Keypair
	exec   Executor
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	connected bool
	detached  bool
	closed    bool
	chain     wallet.Chain

	events wallet.Emitter[wallet.ChangeEvent]
}

func NewWallet(opts Options, exec Executor, logger *zap.SugaredLogger) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid WaaP options: %w", err)
	}
	kp := opts.Keypair
	if kp == nil {
		var err error
		kp, err = suikeys.GenerateKeypair(suikeys.SchemeSecp256k1)
		if err != nil {
			return nil, fmt.Errorf("failed to generate account key: %w", err)
		}
		logger.Warnw("No account key configured, generated an ephemeral one", "address", kp.Address())
	}
	chain := opts.DefaultChain
	if chain == "" {
		chain = wallet.ChainTestnet
	}
	return &Wallet{opts: opts, kp: kp, exec: exec, logger: logger, chain: chain}, nil
}

func (w *Wallet) Name() string { return Name }
func (w *Wallet) Version() string { return Version }
func (w *Wallet) Icon() string { return Icon }
func (w *Wallet) Chains() []wallet.Chain { return wallet.AllChains }
func (w *Wallet) Features() []wallet.Feature { return features }

func (w *Wallet) Options() Options { return w.opts }

func (w *Wallet) Accounts() []wallet.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return nil
	}
	return []wallet.Account{w.account()}
}

func (w *Wallet) account() wallet.Account {
	return wallet.Account{
		Address:   w.kp.Address(),
		PublicKey: w.kp.SuiPublicKey(),
		Chains:    wallet.AllChains,
		Features:  features[3:],
		Label:     Name,
	}
}

// Chain is the chain the wallet currently targets.
func (w *Wallet) Chain() wallet.Chain {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chain
}

func (w *Wallet) On(listener func(wallet.ChangeEvent)) (unsubscribe func()) {
	return w.events.On(listener)
}

func (w *Wallet) Connect(ctx context.Context, in wallet.ConnectInput) (*wallet.ConnectOutput, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if w.connected {
		acct := w.account()
		w.mu.Unlock()
		return &wallet.ConnectOutput{Accounts: []wallet.Account{acct}}, nil
	}
	if in.Silent && !w.opts.RememberLogin {
		w.mu.Unlock()
		return &wallet.ConnectOutput{}, nil
	}
	w.connected = true
	acct := w.account()
	w.mu.Unlock()

	w.logger.Infow("WaaP account connected", "address", acct.Address, "scheme", w.kp.Scheme().String())
	w.events.Emit(wallet.ChangeEvent{Accounts: []wallet.Account{acct}})
	return &wallet.ConnectOutput{Accounts: []wallet.Account{acct}}, nil
}

func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	was := w.connected
	w.connected = false
	w.mu.Unlock()

	if was {
		w.logger.Infow("WaaP account disconnected", "address", w.kp.Address())
		w.events.Emit(wallet.ChangeEvent{Accounts: []wallet.Account{}})
	}
	return nil
}

func (w *Wallet) SignPersonalMessage(ctx context.Context, in wallet.SignPersonalMessageInput) (*wallet.SignedPersonalMessage, error) {
	if err := w.authorize(in.Account); err != nil {
		return nil, err
	}
	sig, err := w.kp.SignPersonalMessage(in.Message)
	if err != nil {
		return nil, err
	}
	return &wallet.SignedPersonalMessage{
		Bytes:     base64.StdEncoding.EncodeToString(in.Message),
		Signature: sig,
	}, nil
}

func (w *Wallet) SignTransaction(ctx context.Context, in wallet.SignTransactionInput) (*wallet.SignedTransaction, error) {
	sig, err := w.signTx(in)
	if err != nil {
		return nil, err
	}
	return &wallet.SignedTransaction{
		Bytes:     base64.StdEncoding.EncodeToString(in.Transaction),
		Signature: sig,
	}, nil
}

func (w *Wallet) SignAndExecuteTransaction(ctx context.Context, in wallet.SignTransactionInput) (*wallet.ExecutedTransaction, error) {
	sig, res, err := w.signAndExecute(ctx, in)
	if err != nil {
		return nil, err
	}
	return &wallet.ExecutedTransaction{
		Digest:    res.Digest,
		Bytes:     base64.StdEncoding.EncodeToString(in.Transaction),
		Signature: sig,
		Status:    res.Status,
	}, nil
}

func (w *Wallet) SignTransactionBlock(ctx context.Context, in wallet.SignTransactionInput) (*wallet.SignedTransactionBlock, error) {
	sig, err := w.signTx(in)
	if err != nil {
		return nil, err
	}
	return &wallet.SignedTransactionBlock{
		TransactionBlockBytes: base64.StdEncoding.EncodeToString(in.Transaction),
		Signature:             sig,
	}, nil
}

func (w *Wallet) SignAndExecuteTransactionBlock(ctx context.Context, in wallet.SignTransactionInput) (*wallet.ExecutedTransactionBlock, error) {
	_, res, err := w.signAndExecute(ctx, in)
	if err != nil {
		return nil, err
	}
	return &wallet.ExecutedTransactionBlock{Digest: res.Digest, Status: res.Status}, nil
}

func (w *Wallet) SwitchChain(ctx context.Context, chain wallet.Chain) error {
	if !chain.Valid() {
		return fmt.Errorf("%w: %s", wallet.ErrUnknownChain, chain)
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrNotInitialized
	}
	changed := w.chain != chain
	w.chain = chain
	w.mu.Unlock()

	if changed {
		w.logger.Infow("WaaP chain switched", "chain", chain)
		w.events.Emit(wallet.ChangeEvent{Chain: &chain})
	}
	return nil
}

// RequestEmail reveals the account email once the user consents.
func (w *Wallet) RequestEmail(ctx context.Context) (string, error) {
	w.mu.RLock()
	closed, connected := w.closed, w.connected
	w.mu.RUnlock()

	switch {
	case closed:
		return "", ErrNotInitialized
	case !connected:
		return "", wallet.ErrNotConnected
	case w.opts.Email == "":
		return "", ErrNoEmail
	case !w.opts.consents(w.kp.Address()):
		return "", wallet.ErrUserRejected
	}
	return w.opts.Email, nil
}

// Detach marks the instance as no longer attached to its host. Handle.Reload
// detaches before rebuilding and Init replaces detached instances.
func (w *Wallet) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detached = true
}

func (w *Wallet) Detached() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.detached || w.closed
}

// Close disconnects the account and drops every listener.
func (w *Wallet) Close() {
	w.mu.Lock()
	w.closed = true
	w.connected = false
	w.mu.Unlock()
	w.events.Clear()
}

func (w *Wallet) authorize(acct wallet.Account) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrNotInitialized
	}
	if !w.connected {
		return wallet.ErrNotConnected
	}
	if acct.Address != "" && acct.Address != w.kp.Address() {
		return fmt.Errorf("%w: %s", wallet.ErrAccountMismatch, acct.Address)
	}
	return nil
}

func (w *Wallet) signTx(in wallet.SignTransactionInput) (string, error) {
	if err := w.authorize(in.Account); err != nil {
		return "", err
	}
	if in.Chain != "" && !in.Chain.Valid() {
		return "", fmt.Errorf("%w: %s", wallet.ErrUnknownChain, in.Chain)
	}
	if len(in.Transaction) == 0 {
		return "", errors.New("empty transaction")
	}
	return w.kp.SignTransaction(in.Transaction)
}

func (w *Wallet) signAndExecute(ctx context.Context, in wallet.SignTransactionInput) (string, *ExecutionResult, error) {
	if w.exec == nil {
		return "", nil, fmt.Errorf("%w: no executor configured", wallet.ErrFeatureNotSupported)
	}
	sig, err := w.signTx(in)
	if err != nil {
		return "", nil, err
	}
	chain := in.Chain
	if chain == "" {
		chain = w.Chain()
	}
	res, err := w.exec.Execute(ctx, chain, in.Transaction, sig)
	if err != nil {
		return "", nil, fmt.Errorf("failed to execute transaction: %w", err)
	}
	w.logger.Infow("Transaction executed", "chain", chain, "digest", res.Digest, "status", res.Status)
	return sig, res, nil
}
