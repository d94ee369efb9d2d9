package waap

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

// Handle owns the one live Wallet of a process and its registry entry.
type Handle struct {
	registry *wallet.Registry
	exec     Executor
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	current    *Wallet
	unregister func()
	generation int
}

func NewHandle(registry *wallet.Registry, exec Executor, logger *zap.SugaredLogger) *Handle {
	return &Handle{registry: registry, exec: exec, logger: logger}
}

// Init returns the live instance when there is one. A detached instance is
// torn down and replaced by a fresh one built from opts.
func (h *Handle) Init(opts Options) (*Wallet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initLocked(opts)
}

// Reload detaches the live instance and replaces it with one built from opts.
// Invalid opts leave the live instance in place.
func (h *Handle) Reload(opts Options) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid WaaP options: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current.Detach()
	}
	return h.initLocked(opts)
}

func (h *Handle) initLocked(opts Options) (*Wallet, error) {
	if h.current != nil && !h.current.Detached() {
		return h.current, nil
	}
	if h.current != nil {
		h.logger.Infow("Replacing detached WaaP instance", "generation", h.generation)
		h.teardownLocked()
	}

	w, err := NewWallet(opts, h.exec, h.logger)
	if err != nil {
		return nil, err
	}
	unregister, err := h.registry.Register(w)
	if err != nil {
		return nil, fmt.Errorf("failed to register WaaP wallet: %w", err)
	}

	h.current = w
	h.unregister = unregister
	h.generation++
	h.logger.Infow("WaaP wallet initialized",
		"generation", h.generation,
		"staging", opts.UseStaging,
		"referralCode", opts.ReferralCode,
	)
	return w, nil
}

// Current returns the live instance, if any.
func (h *Handle) Current() (*Wallet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil || h.current.Detached() {
		return nil, ErrNotInitialized
	}
	return h.current, nil
}

// Generation counts how many instances have been created.
func (h *Handle) Generation() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.teardownLocked()
}

func (h *Handle) teardownLocked() {
	if h.current == nil {
		return
	}
	h.unregister()
	h.current.Close()
	h.current = nil
	h.unregister = nil
}
