package wallet

import (
	"fmt"
	"sort"
	"sync"
)

// RegistryEvent is delivered to registry listeners.
type RegistryEvent struct {
	Registered bool
	Wallet     Wallet
}

// Registry is the in-process analogue of the wallet-standard window registry.
type Registry struct {
	mu        sync.RWMutex
	wallets   map[string]Wallet
	listeners Emitter[RegistryEvent]
}

func NewRegistry() *Registry {
	return &Registry{wallets: make(map[string]Wallet)}
}

// Register announces w and returns a function that removes it again.
func (r *Registry) Register(w Wallet) (unregister func(), err error) {
	r.mu.Lock()
	if _, exists := r.wallets[w.Name()]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("wallet %q already registered", w.Name())
	}
	r.wallets[w.Name()] = w
	r.mu.Unlock()

	r.listeners.Emit(RegistryEvent{Registered: true, Wallet: w})

	var once sync.Once
	return func() {
		once.Do(func() { r.Unregister(w) })
	}, nil
}

// Unregister removes w if it is still the registered wallet under its name.
func (r *Registry) Unregister(w Wallet) {
	r.mu.Lock()
	current, ok := r.wallets[w.Name()]
	if !ok || current != w {
		r.mu.Unlock()
		return
	}
	delete(r.wallets, w.Name())
	r.mu.Unlock()

	r.listeners.Emit(RegistryEvent{Registered: false, Wallet: w})
}

func (r *Registry) Get(name string) (Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[name]
	return w, ok
}

// List returns the registered wallets sorted by name.
func (r *Registry) List() []Wallet {
	r.mu.RLock()
	out := make([]Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, w)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) On(listener func(RegistryEvent)) (unsubscribe func()) {
	return r.listeners.On(listener)
}
