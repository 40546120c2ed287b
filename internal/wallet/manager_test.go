package wallet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
)

const (
	anvilKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	anvilAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestAddWatchOnlyWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())

	require.NoError(t, mgr.AddWatchOnly("watcher", strings.ToLower(anvilAddr)))

	w, err := mgr.Get("watcher")
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeWatchOnly, w.Type)
	assert.Equal(t, anvilAddr, w.Address, "address is stored checksummed")
	assert.NotEmpty(t, w.CreatedAt)
}

func TestAddWatchOnlyRejectsBadAddress(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	assert.ErrorIs(t, mgr.AddWatchOnly("bad", "0x123"), wallet.ErrInvalidAddress)
}

func TestAddDuplicateWalletErrors(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWatchOnly("dup", anvilAddr))
	assert.ErrorIs(t, mgr.AddWatchOnly("dup", anvilAddr), wallet.ErrWalletExists)
	assert.ErrorIs(t, mgr.AddWithKey("dup", anvilKey), wallet.ErrWalletExists)
}

func TestAddSigningWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWithKey("signer", anvilKey))

	w, err := mgr.Get("signer")
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeSigning, w.Type)
	assert.Equal(t, anvilAddr, w.Address)
	assert.Equal(t, "w3sale.signer", w.KeyRef)
}

func TestInvalidPrivateKey(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	assert.ErrorIs(t, mgr.AddWithKey("bad", "not-a-valid-key"), wallet.ErrInvalidKey)
}

func TestGenerateWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())

	w, hexKey, err := mgr.Generate("fresh")
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeSigning, w.Type)
	assert.Len(t, w.Address, 42)
	assert.True(t, strings.HasPrefix(hexKey, "0x"))
	assert.Len(t, hexKey, 66)

	_, _, err = mgr.Generate("fresh")
	assert.ErrorIs(t, err, wallet.ErrWalletExists)
}

func TestListWalletsSorted(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	for _, n := range []string{"carol", "alice", "bob"} {
		require.NoError(t, mgr.AddWatchOnly(n, anvilAddr))
	}

	var names []string
	for _, w := range mgr.List() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)
}

func TestRemoveWalletDeletesKey(t *testing.T) {
	keys := wallet.NewInMemoryKeystore()
	mgr := wallet.NewManager(wallet.WithInMemoryStore(), wallet.WithKeys(keys))
	require.NoError(t, mgr.AddWithKey("w1", anvilKey))

	require.NoError(t, mgr.Remove("w1"))

	_, err := mgr.Get("w1")
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
	_, err = keys.Retrieve("w3sale.w1")
	assert.Error(t, err, "key must be removed with the wallet")

	assert.ErrorIs(t, mgr.Remove("w1"), wallet.ErrWalletNotFound)
}

func TestSetDefaultAndResolve(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWatchOnly("w1", anvilAddr))
	require.NoError(t, mgr.AddWatchOnly("w2", anvilAddr))

	_, err := mgr.Resolve("")
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound, "two wallets and no default")

	require.NoError(t, mgr.SetDefault("w2"))
	w, err := mgr.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "w2", w.Name)

	w, err = mgr.Resolve("w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", w.Name)
}

func TestDefaultWalletWithSingleWallet(t *testing.T) {
	mgr := wallet.NewManager(wallet.WithInMemoryStore())
	require.NoError(t, mgr.AddWatchOnly("only", anvilAddr))

	def := mgr.Default()
	require.NotNil(t, def)
	assert.Equal(t, "only", def.Name)
}

func TestConfigStorePersists(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	mgr := wallet.NewManager(wallet.WithConfig(cfg), wallet.WithKeys(wallet.NewInMemoryKeystore()))
	require.NoError(t, mgr.AddWithKey("buyer", anvilKey))
	require.NoError(t, mgr.SetDefault("buyer"))

	reopened := wallet.NewManager(wallet.WithConfig(cfg), wallet.WithKeys(wallet.NewInMemoryKeystore()))
	w, err := reopened.Get("buyer")
	require.NoError(t, err)
	assert.Equal(t, anvilAddr, w.Address)
	assert.True(t, w.IsDefault)

	wf, err := cfg.LoadWallets()
	require.NoError(t, err)
	require.Len(t, wf.Wallets, 1)
	assert.Equal(t, "w3sale.buyer", wf.Wallets[0].KeyRef)
}
