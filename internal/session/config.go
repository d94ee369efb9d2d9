package session

import (
	"fmt"

	"github.com/waapdemo/sui-demo-backend/internal/store"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

// Network is one entry of the dApp's network config.
type Network struct {
	Name   string `json:"name"`
	RPCURL string `json:"url"`
}

func (n Network) Chain() wallet.Chain {
	return wallet.ChainForNetwork(n.Name)
}

type Config struct {
	Networks       []Network
	DefaultNetwork string
	AutoConnect    bool
	// StorageKey is the kv hash that remembers the last connection.
	StorageKey string
}

func (c Config) network(name string) (Network, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return Network{}, false
}

func (c *Config) validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if !n.Chain().Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownNetwork, n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate network %q", n.Name)
		}
		seen[n.Name] = true
	}
	if _, ok := c.network(c.DefaultNetwork); !ok {
		return fmt.Errorf("default network %q is not configured", c.DefaultNetwork)
	}
	if c.StorageKey == "" {
		c.StorageKey = store.KeyRemembered
	}
	return nil
}
