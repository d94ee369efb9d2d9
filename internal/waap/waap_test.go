package waap

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/pubkey"
	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/verify"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, chain wallet.Chain, txBytes []byte, signature string) (*ExecutionResult, error) {
	args := m.Called(ctx, chain, txBytes, signature)
	if r := args.Get(0); r != nil {
		return r.(*ExecutionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	kp, err := suikeys.GenerateKeypair(suikeys.SchemeSecp256k1)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Keypair = kp
	opts.Email = "demo@waap.xyz"
	return opts
}

func newTestWallet(t *testing.T, exec Executor) *Wallet {
	t.Helper()
	w, err := NewWallet(testOptions(t), exec, zap.NewNop().Sugar())
	require.NoError(t, err)
	return w
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.False(t, opts.UseStaging)
	assert.Equal(t, []string{"google", "twitter"}, opts.AllowedSocials)
	assert.Equal(t, []string{"email", "social"}, opts.AuthenticationMethods)
	assert.False(t, opts.DarkMode)
	assert.Equal(t, "waap-sui-demo", opts.ReferralCode)
	assert.NoError(t, opts.validate())

	opts.AllowedSocials = []string{"myspace"}
	assert.Error(t, opts.validate())
}

func TestWallet_ConnectDisconnect(t *testing.T) {
	w := newTestWallet(t, nil)

	var events []wallet.ChangeEvent
	w.On(func(ev wallet.ChangeEvent) { events = append(events, ev) })

	out, err := w.Connect(context.Background(), wallet.ConnectInput{Silent: true})
	require.NoError(t, err)
	assert.Empty(t, out.Accounts, "silent connect does not authorize")

	out, err = w.Connect(context.Background(), wallet.ConnectInput{})
	require.NoError(t, err)
	require.Len(t, out.Accounts, 1)

	acct := out.Accounts[0]
	assert.Equal(t, "WaaP", acct.Label)
	require.Len(t, acct.PublicKey, 34)
	assert.Equal(t, byte(0x01), acct.PublicKey[0])

	// The connected account's key yields an EVM address.
	evm, err := pubkey.EVMAddressForAccount(acct.PublicKey)
	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, evm)

	require.NoError(t, w.Disconnect(context.Background()))
	assert.Empty(t, w.Accounts())
	require.Len(t, events, 2)
	assert.Empty(t, events[1].Accounts)
}

func TestWallet_SignPersonalMessage(t *testing.T) {
	w := newTestWallet(t, nil)
	ctx := context.Background()

	_, err := w.SignPersonalMessage(ctx, wallet.SignPersonalMessageInput{Message: []byte("hi")})
	assert.ErrorIs(t, err, wallet.ErrNotConnected)

	out, err := w.Connect(ctx, wallet.ConnectInput{})
	require.NoError(t, err)
	acct := out.Accounts[0]

	signed, err := w.SignPersonalMessage(ctx, wallet.SignPersonalMessageInput{Message: []byte("hi"), Account: acct})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hi")), signed.Bytes)

	signer, err := verify.PersonalMessage([]byte("hi"), signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, signer.Address)

	_, err = w.SignPersonalMessage(ctx, wallet.SignPersonalMessageInput{Message: []byte("hi"), Account: wallet.Account{Address: "0xdead"}})
	assert.ErrorIs(t, err, wallet.ErrAccountMismatch)
}

func TestWallet_SignTransactionVariants(t *testing.T) {
	w := newTestWallet(t, nil)
	ctx := context.Background()
	_, err := w.Connect(ctx, wallet.ConnectInput{})
	require.NoError(t, err)

	tx := []byte{0x00, 0x00, 0x01, 0x02}
	in := wallet.SignTransactionInput{Transaction: tx, Chain: wallet.ChainTestnet}

	signed, err := w.SignTransaction(ctx, in)
	require.NoError(t, err)
	_, err = verify.Transaction(tx, signed.Signature)
	require.NoError(t, err)

	block, err := w.SignTransactionBlock(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, signed.Bytes, block.TransactionBlockBytes)

	_, err = w.SignTransaction(ctx, wallet.SignTransactionInput{Transaction: tx, Chain: "sui:bogus"})
	assert.ErrorIs(t, err, wallet.ErrUnknownChain)

	_, err = w.SignAndExecuteTransaction(ctx, in)
	assert.ErrorIs(t, err, wallet.ErrFeatureNotSupported, "no executor")
}

func TestWallet_SignAndExecute(t *testing.T) {
	exec := new(MockExecutor)
	w := newTestWallet(t, exec)
	ctx := context.Background()
	_, err := w.Connect(ctx, wallet.ConnectInput{})
	require.NoError(t, err)

	tx := []byte{0x00, 0x01}
	exec.On("Execute", ctx, wallet.ChainTestnet, tx, mock.AnythingOfType("string")).
		Return(&ExecutionResult{Digest: "5xYz", Status: "success"}, nil).Twice()

	res, err := w.SignAndExecuteTransaction(ctx, wallet.SignTransactionInput{Transaction: tx})
	require.NoError(t, err)
	assert.Equal(t, "5xYz", res.Digest)
	assert.NotEmpty(t, res.Signature)

	legacy, err := w.SignAndExecuteTransactionBlock(ctx, wallet.SignTransactionInput{Transaction: tx})
	require.NoError(t, err)
	assert.Equal(t, "5xYz", legacy.Digest)

	exec.On("Execute", ctx, wallet.ChainDevnet, tx, mock.Anything).Return(nil, errors.New("rpc down"))
	_, err = w.SignAndExecuteTransaction(ctx, wallet.SignTransactionInput{Transaction: tx, Chain: wallet.ChainDevnet})
	assert.ErrorContains(t, err, "rpc down")

	exec.AssertExpectations(t)
}

func TestWallet_SwitchChain(t *testing.T) {
	w := newTestWallet(t, nil)
	var got []wallet.Chain
	w.On(func(ev wallet.ChangeEvent) {
		if ev.Chain != nil {
			got = append(got, *ev.Chain)
		}
	})

	require.NoError(t, w.SwitchChain(context.Background(), wallet.ChainDevnet))
	require.NoError(t, w.SwitchChain(context.Background(), wallet.ChainDevnet))
	assert.Equal(t, wallet.ChainDevnet, w.Chain())
	assert.Equal(t, []wallet.Chain{wallet.ChainDevnet}, got, "no event when the chain is unchanged")

	assert.ErrorIs(t, w.SwitchChain(context.Background(), "sui:nope"), wallet.ErrUnknownChain)
}

func TestWallet_RequestEmail(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	consent := false
	opts.EmailConsent = func(string) bool { return consent }
	w, err := NewWallet(opts, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = w.RequestEmail(ctx)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)

	_, err = w.Connect(ctx, wallet.ConnectInput{})
	require.NoError(t, err)

	_, err = w.RequestEmail(ctx)
	assert.ErrorIs(t, err, wallet.ErrUserRejected)

	consent = true
	email, err := w.RequestEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo@waap.xyz", email)

	w.Close()
	_, err = w.RequestEmail(ctx)
	assert.EqualError(t, err, "WaaP wallet not initialized")
}

func TestHandle_Lifecycle(t *testing.T) {
	registry := wallet.NewRegistry()
	h := NewHandle(registry, nil, zap.NewNop().Sugar())

	_, err := h.Current()
	assert.ErrorIs(t, err, ErrNotInitialized)

	first, err := h.Init(testOptions(t))
	require.NoError(t, err)
	again, err := h.Init(testOptions(t))
	require.NoError(t, err)
	assert.Same(t, first, again, "live instance is reused")
	assert.Equal(t, 1, h.Generation())

	registered, ok := registry.Get(Name)
	require.True(t, ok)
	assert.Same(t, first, registered)

	listenerCalls := 0
	first.On(func(wallet.ChangeEvent) { listenerCalls++ })

	first.Detach()
	_, err = h.Current()
	assert.ErrorIs(t, err, ErrNotInitialized)

	second, err := h.Init(testOptions(t))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, h.Generation())

	registered, ok = registry.Get(Name)
	require.True(t, ok)
	assert.Same(t, second, registered)
	assert.Len(t, registry.List(), 1)

	// The torn down instance no longer talks to old listeners.
	_, err = first.Connect(context.Background(), wallet.ConnectInput{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Zero(t, listenerCalls)

	h.Close()
	_, ok = registry.Get(Name)
	assert.False(t, ok)
}

func TestHandle_Reload(t *testing.T) {
	registry := wallet.NewRegistry()
	h := NewHandle(registry, nil, zap.NewNop().Sugar())

	first, err := h.Init(testOptions(t))
	require.NoError(t, err)
	_, err = first.Connect(context.Background(), wallet.ConnectInput{})
	require.NoError(t, err)

	var registered []bool
	unsubscribe := registry.On(func(e wallet.RegistryEvent) { registered = append(registered, e.Registered) })
	defer unsubscribe()

	bad := testOptions(t)
	bad.AllowedSocials = []string{"myspace"}
	_, err = h.Reload(bad)
	require.Error(t, err)
	current, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, first, current, "invalid options keep the live instance")

	opts := testOptions(t)
	opts.ReferralCode = "reloaded"
	second, err := h.Reload(opts)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, h.Generation())
	assert.Equal(t, "reloaded", second.Options().ReferralCode)
	assert.True(t, first.Detached())
	assert.Empty(t, first.Accounts())

	live, ok := registry.Get(Name)
	require.True(t, ok)
	assert.Same(t, second, live)
	assert.Equal(t, []bool{false, true}, registered)
}
