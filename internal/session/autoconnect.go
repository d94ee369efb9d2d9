package session

import (
	"context"
	"errors"

	"github.com/waapdemo/sui-demo-backend/internal/wallet"
	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

const (
	fieldWallet  = "wallet"
	fieldAddress = "address"
)

func (m *Manager) remember(ctx context.Context, walletName, address string) {
	if m.kv == nil {
		return
	}
	if err := m.kv.HSet(ctx, m.cfg.StorageKey, fieldWallet, []byte(walletName)); err != nil {
		m.logger.Warnw("Failed to remember connection", "error", err)
		return
	}
	if err := m.kv.HSet(ctx, m.cfg.StorageKey, fieldAddress, []byte(address)); err != nil {
		m.logger.Warnw("Failed to remember connection", "error", err)
	}
}

func (m *Manager) forget(ctx context.Context) {
	if m.kv == nil {
		return
	}
	if _, err := m.kv.Del(ctx, m.cfg.StorageKey); err != nil {
		m.logger.Warnw("Failed to forget connection", "error", err)
	}
}

// Remembered returns the wallet and account of the last connection.
func (m *Manager) Remembered(ctx context.Context) (walletName, address string, err error) {
	if m.kv == nil {
		return "", "", kv.ErrNotFound
	}
	fields, err := m.kv.HGetAll(ctx, m.cfg.StorageKey)
	if err != nil {
		return "", "", err
	}
	name, ok := fields[fieldWallet]
	if !ok || len(name) == 0 {
		return "", "", kv.ErrNotFound
	}
	return string(name), string(fields[fieldAddress]), nil
}

// AutoConnect silently reconnects the remembered wallet. A wallet that is not
// registered yet is picked up when it registers, see WatchRegistry.
func (m *Manager) AutoConnect(ctx context.Context) error {
	if !m.cfg.AutoConnect {
		return nil
	}
	name, address, err := m.Remembered(ctx)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	busy := m.status != StatusDisconnected
	m.mu.Unlock()
	if busy {
		return nil
	}
	if _, ok := m.registry.Get(name); !ok {
		m.logger.Debugw("Remembered wallet not registered yet", "wallet", name)
		return nil
	}

	if _, err := m.connect(ctx, name, address, true); err != nil {
		if errors.Is(err, ErrNoAuthorizedAccount) {
			// The wallet no longer authorizes the remembered account.
			m.forget(ctx)
			return nil
		}
		return err
	}
	return nil
}

// WatchRegistry retries AutoConnect whenever a wallet registers, and drops
// the connection when the connected wallet unregisters.
func (m *Manager) WatchRegistry() {
	stop := m.registry.On(func(ev wallet.RegistryEvent) {
		ctx := context.Background()
		if ev.Registered {
			if err := m.AutoConnect(ctx); err != nil {
				m.logger.Warnw("Auto-connect failed", "wallet", ev.Wallet.Name(), "error", err)
			}
			return
		}

		m.mu.Lock()
		if m.current != ev.Wallet {
			m.mu.Unlock()
			return
		}
		m.clearLocked()
		m.mu.Unlock()
		m.logger.Infow("Connected wallet unregistered", "wallet", ev.Wallet.Name())
		m.publish(ctx)
	})

	m.mu.Lock()
	if m.stopRegistry != nil {
		m.stopRegistry()
	}
	m.stopRegistry = stop
	m.mu.Unlock()
}
