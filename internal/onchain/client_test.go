package onchain

import (
	"context"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/pattonkan/sui-go/sui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/store"
	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

const testAddress = "0x7d20dcdb2bca4f508ea9613994683eb4e76e9c4ed371169677c1be02aaf0b58e"

type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) GetBalances(ctx context.Context, network, address string, dest interface{}) error {
	args := m.Called(ctx, network, address, dest)
	if fill, ok := args.Get(1).([]Balance); ok {
		*(dest.(*[]Balance)) = fill
	}
	return args.Error(0)
}

func (m *MockBalanceCache) SetBalances(ctx context.Context, network, address string, value interface{}) error {
	args := m.Called(ctx, network, address, value)
	return args.Error(0)
}

func (m *MockBalanceCache) InvalidateBalances(ctx context.Context, network, address string) error {
	args := m.Called(ctx, network, address)
	return args.Error(0)
}

func newTestPool(t *testing.T, cache BalanceCache) *Pool {
	t.Helper()
	p, err := NewPool([]Network{
		{Name: "testnet", RPCURL: "http://127.0.0.1:1", FaucetURL: "http://127.0.0.1:1/gas"},
		{Name: "mainnet", RPCURL: "http://127.0.0.1:1"},
	}, cache, zap.NewNop().Sugar())
	require.NoError(t, err)
	return p
}

func TestNewPool_Validation(t *testing.T) {
	logger := zap.NewNop().Sugar()

	_, err := NewPool([]Network{{Name: "testnet"}}, nil, logger)
	assert.Error(t, err)

	_, err = NewPool([]Network{
		{Name: "testnet", RPCURL: "http://a"},
		{Name: "testnet", RPCURL: "http://b"},
	}, nil, logger)
	assert.ErrorContains(t, err, "duplicate")
}

func TestPool_Client(t *testing.T) {
	p := newTestPool(t, nil)

	c, err := p.Client("testnet")
	require.NoError(t, err)
	assert.Equal(t, "testnet", c.Network().Name)

	_, err = p.Client("devnet")
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	assert.Equal(t, []string{"mainnet", "testnet"}, p.Networks())
}

func TestBalances_CacheHit(t *testing.T) {
	cache := new(MockBalanceCache)
	want := []Balance{{CoinType: SuiCoinType, Total: "1500000000", Formatted: "1.5"}}
	cache.On("GetBalances", mock.Anything, "testnet", testAddress, mock.Anything).Return(nil, want)

	p := newTestPool(t, cache)
	got, err := p.Balances(context.Background(), "testnet", testAddress)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	cache.AssertNotCalled(t, "SetBalances", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBalances_Errors(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.Balances(ctx, "devnet", testAddress)
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	_, err = p.Balances(ctx, "testnet", "not-an-address")
	assert.ErrorContains(t, err, "invalid address")
}

func TestFaucet_NotAvailable(t *testing.T) {
	p := newTestPool(t, nil)

	err := p.Faucet(context.Background(), "mainnet", testAddress)
	assert.ErrorIs(t, err, ErrNoFaucet)

	err = p.Faucet(context.Background(), "testnet", "zz")
	assert.ErrorContains(t, err, "invalid address")
}

func TestExecute_UnknownChain(t *testing.T) {
	p := newTestPool(t, nil)
	_, err := p.Execute(context.Background(), wallet.ChainDevnet, []byte{1}, "AA==")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestFormatSUI(t *testing.T) {
	tests := []struct {
		mist int64
		want string
	}{
		{0, "0"},
		{1, "0.000000001"},
		{1_000_000_000, "1"},
		{1_500_000_000, "1.5"},
		{123_456_789_012, "123.456789012"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSUI(big.NewInt(tt.mist)))
	}
}

func TestNewBalance(t *testing.T) {
	b := newBalance(SuiCoinType, big.NewInt(2_000_000_000))
	assert.Equal(t, "2000000000", b.Total)
	assert.Equal(t, "2", b.Formatted)

	other := newBalance("0xabc::usdc::USDC", big.NewInt(5))
	assert.Equal(t, "5", other.Total)
	assert.Empty(t, other.Formatted)

	empty := newBalance(SuiCoinType, nil)
	assert.Equal(t, "0", empty.Total)
}

func TestDecodeSignature(t *testing.T) {
	for _, scheme := range []suikeys.Scheme{suikeys.SchemeEd25519, suikeys.SchemeSecp256k1} {
		t.Run(scheme.String(), func(t *testing.T) {
			kp, err := suikeys.GenerateKeypair(scheme)
			require.NoError(t, err)

			serialized, err := kp.SignTransaction([]byte("tx-bytes"))
			require.NoError(t, err)
			raw, err := base64.StdEncoding.DecodeString(serialized)
			require.NoError(t, err)

			sig, sender, err := decodeSignature(serialized)
			require.NoError(t, err)
			assert.Equal(t, raw, sig.Bytes())
			assert.Equal(t, kp.Address(), sender)
			if scheme == suikeys.SchemeEd25519 {
				assert.NotNil(t, sig.Ed25519SuiSignature)
			} else {
				assert.NotNil(t, sig.Secp256k1SuiSignature)
			}
		})
	}
}

func TestDecodeSignature_Malformed(t *testing.T) {
	_, _, err := decodeSignature("%%%")
	assert.ErrorIs(t, err, suikeys.ErrMalformedSignature)

	_, _, err = decodeSignature(base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}))
	assert.ErrorIs(t, err, suikeys.ErrMalformedSignature)

	zk := append([]byte{byte(suikeys.SchemeZkLogin)}, make([]byte, 200)...)
	_, _, err = decodeSignature(base64.StdEncoding.EncodeToString(zk))
	assert.ErrorIs(t, err, suikeys.ErrMalformedSignature)
}

func TestParseDemoKind(t *testing.T) {
	k, err := ParseDemoKind("")
	require.NoError(t, err)
	assert.Equal(t, DemoSimple, k)

	for _, s := range []string{"simple", "multi", "legacy"} {
		k, err := ParseDemoKind(s)
		require.NoError(t, err)
		assert.Equal(t, DemoKind(s), k)
	}

	_, err = ParseDemoKind("swap")
	assert.Error(t, err)
}

func TestSplitAmounts(t *testing.T) {
	assert.Equal(t, []uint64{1000}, DemoSimple.splitAmounts())
	assert.Equal(t, []uint64{1000, 2000, 3000}, DemoMulti.splitAmounts())
	assert.Equal(t, []uint64{100}, DemoLegacy.splitAmounts())
}

func TestBuildDemo_NotEnoughCoins(t *testing.T) {
	sender := sui.MustAddressFromHex(testAddress)

	_, err := buildDemo(DemoSimple, sender, nil)
	assert.ErrorIs(t, err, ErrNotEnoughCoins)

	_, err = buildDemo(DemoMulti, sender, []*sui.ObjectRef{{}})
	assert.ErrorIs(t, err, ErrNotEnoughCoins)
}

func TestPool_WithStoreCache(t *testing.T) {
	cache := store.NewInMemoryCache(zap.NewNop().Sugar(), nil)
	defer cache.Close()

	ctx := context.Background()
	want := []Balance{{CoinType: SuiCoinType, Total: "7", Formatted: "0.000000007"}}
	require.NoError(t, cache.SetBalances(ctx, "testnet", testAddress, want))

	p := newTestPool(t, cache)
	got, err := p.Balances(ctx, "testnet", testAddress)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	p.invalidate(ctx, "testnet", testAddress)
	var after []Balance
	assert.ErrorIs(t, cache.GetBalances(ctx, "testnet", testAddress, &after), store.ErrCacheMiss)
}
