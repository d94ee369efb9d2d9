package config

import (
	"testing"
	"time"

	"github.com/pattonkan/sui-go/suisigner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "testnet", cfg.Sui.DefaultNetwork)
	assert.Equal(t, []string{"google", "twitter"}, cfg.Wallet.Socials)
	assert.Equal(t, []string{"email", "social"}, cfg.Wallet.AuthMethods)
	assert.Equal(t, "waap-sui-demo", cfg.Wallet.ReferralCode)
	assert.True(t, cfg.Wallet.RememberLogin)
	assert.Equal(t, 120, cfg.Security.RateLimitRPM)
	assert.Equal(t, 30*time.Second, cfg.Security.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Sui.BalancePollInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)

	names := make([]string, 0)
	for _, n := range cfg.Networks() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"mainnet", "testnet", "devnet"}, names)

	kp, err := cfg.Keypair()
	require.NoError(t, err)
	assert.Nil(t, kp)

	assert.Equal(t, kv.BackendMemory, cfg.KVConfig().Backend)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WAAP_ENV", "prod")
	t.Setenv("WAAP_DEFAULT_NETWORK", "Localnet")
	t.Setenv("WAAP_LOCALNET_RPC_URL", "http://127.0.0.1:9000")
	t.Setenv("WAAP_ALLOWED_SOCIALS", "google, discord ,")
	t.Setenv("WAAP_KEY_SCHEME", "ed25519")
	t.Setenv("WAAP_PRIVATE_KEY_HEX", "0x0101010101010101010101010101010101010101010101010101010101010101")
	t.Setenv("WAAP_KV_BACKEND", "redis")
	t.Setenv("WAAP_REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "localnet", cfg.Sui.DefaultNetwork)
	assert.Equal(t, []string{"google", "discord"}, cfg.Wallet.Socials)

	networks := cfg.Networks()
	require.Len(t, networks, 4)
	assert.Equal(t, NetworkEndpoint{Name: "localnet", RPCURL: "http://127.0.0.1:9000", FaucetURL: cfg.Sui.LocalnetFaucetURL}, networks[3])
	assert.Empty(t, networks[0].FaucetURL)

	kp, err := cfg.Keypair()
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.Equal(t, suikeys.SchemeEd25519, kp.Scheme())

	kvc := cfg.KVConfig()
	assert.Equal(t, kv.BackendRedis, kvc.Backend)
	assert.Equal(t, "redis://cache:6379/1", kvc.RedisURL)
}

func TestLoad_Mnemonic(t *testing.T) {
	t.Setenv("WAAP_KEY_SCHEME", "ED25519")
	t.Setenv("WAAP_MNEMONIC", " "+suisigner.TEST_MNEMONIC+"\n")

	cfg, err := Load()
	require.NoError(t, err)

	kp, err := cfg.Keypair()
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.Equal(t, suisigner.TEST_ADDRESS.String(), kp.Address())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown network", map[string]string{"WAAP_DEFAULT_NETWORK": "betanet"}, "WAAP_DEFAULT_NETWORK"},
		{"empty rpc url", map[string]string{"WAAP_TESTNET_RPC_URL": ""}, "RPC URL for testnet"},
		{"bad scheme", map[string]string{"WAAP_KEY_SCHEME": "rsa"}, "WAAP_KEY_SCHEME"},
		{"bad key hex", map[string]string{"WAAP_PRIVATE_KEY_HEX": "xyz"}, "WAAP_PRIVATE_KEY_HEX"},
		{"short key", map[string]string{"WAAP_PRIVATE_KEY_HEX": "0102"}, "WAAP_PRIVATE_KEY_HEX"},
		{"bad mnemonic", map[string]string{"WAAP_KEY_SCHEME": "ed25519", "WAAP_MNEMONIC": "not a real phrase"}, "WAAP_MNEMONIC"},
		{"mnemonic for secp256k1", map[string]string{"WAAP_MNEMONIC": suisigner.TEST_MNEMONIC}, "WAAP_MNEMONIC"},
		{"key and mnemonic", map[string]string{
			"WAAP_PRIVATE_KEY_HEX": "0101010101010101010101010101010101010101010101010101010101010101",
			"WAAP_MNEMONIC":        suisigner.TEST_MNEMONIC,
		}, "only one of"},
		{"negative poll interval", map[string]string{"WAAP_BALANCE_POLL_INTERVAL": "-1s"}, "WAAP_BALANCE_POLL_INTERVAL"},
		{"bad backend", map[string]string{"WAAP_KV_BACKEND": "etcd"}, "WAAP_KV_BACKEND"},
		{"negative rate", map[string]string{"WAAP_RATE_LIMIT_RPM": "-1"}, "WAAP_RATE_LIMIT_RPM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
