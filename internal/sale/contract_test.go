package sale_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3sale/internal/chain/chaintest"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
)

var (
	saleAddr  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tokenAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	buyer     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func TestReceiptMintedTopic(t *testing.T) {
	want := common.BytesToHash(crypto.Keccak256([]byte("ReceiptMinted(address,uint256)")))
	assert.Equal(t, want, sale.ReceiptMintedTopic)
	assert.Equal(t, sale.ReceiptABI.Events["ReceiptMinted"].ID, sale.ReceiptMintedTopic)
}

func TestCallBig(t *testing.T) {
	node := chaintest.New(1, 1).Returns(saleAddr, "rate()", chaintest.Uint(chaintest.Wei(1000)))
	got, err := sale.NewCrowdsale(node, saleAddr).CallBig(context.Background(), "rate")
	require.NoError(t, err)
	assert.Equal(t, chaintest.Wei(1000), got)

	calls := node.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, saleAddr, *calls[0].To)
}

func TestCallAddress(t *testing.T) {
	node := chaintest.New(1, 1).Returns(saleAddr, "owner()", chaintest.Address(buyer))
	got, err := sale.NewCrowdsale(node, saleAddr).CallAddress(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, buyer, got)
}

func TestCallWithArgs(t *testing.T) {
	node := chaintest.New(1, 1).Returns(tokenAddr, "balanceOf(address)", chaintest.Uint64(42))
	got, err := sale.NewToken(node, tokenAddr).CallBig(context.Background(), "balanceOf", buyer)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), got)

	data := node.Calls()[0].Data
	assert.Equal(t, buyer, common.BytesToAddress(data[4:36]))
}

func TestCallEmptyOutput(t *testing.T) {
	// An address without code answers every call with empty data.
	node := chaintest.New(1, 1).Returns(saleAddr, "cap()", nil)
	_, err := sale.NewCrowdsale(node, saleAddr).CallBig(context.Background(), "cap")
	assert.ErrorIs(t, err, sale.ErrUnexpectedOutput)
}

func TestCallNodeError(t *testing.T) {
	boom := errors.New("execution reverted")
	node := chaintest.New(1, 1).Fails(saleAddr, "weiRaised()", boom)
	_, err := sale.NewCrowdsale(node, saleAddr).CallBig(context.Background(), "weiRaised")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "weiRaised()")
}

func TestCallUnknownMethod(t *testing.T) {
	_, err := sale.NewCrowdsale(chaintest.New(1, 1), saleAddr).Call(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDecimals(t *testing.T) {
	node := chaintest.New(1, 1).Returns(tokenAddr, "decimals()", chaintest.Uint64(6))
	d, err := sale.NewToken(node, tokenAddr).Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, d)
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		name string
		out  []byte
		want string
	}{
		{"string", chaintest.String("PMT"), "PMT"},
		{"bytes32", chaintest.Bytes32String("MKR"), "MKR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := chaintest.New(1, 1).Returns(tokenAddr, "symbol()", tt.out)
			got, err := sale.NewToken(node, tokenAddr).Symbol(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSymbolGarbage(t *testing.T) {
	node := chaintest.New(1, 1).Returns(tokenAddr, "symbol()", []byte{0x01})
	_, err := sale.NewToken(node, tokenAddr).Symbol(context.Background())
	assert.ErrorIs(t, err, sale.ErrUnexpectedOutput)
}

func TestPackWithdraw(t *testing.T) {
	data, err := sale.NewCrowdsale(chaintest.New(1, 1), saleAddr).Pack("withdraw")
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("withdraw()"))[:4], data)
}
