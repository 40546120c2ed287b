package ui

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
	"github.com/Mohsinsiddi/w3sale/internal/state"
	"github.com/Mohsinsiddi/w3sale/internal/tally"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func report() *state.Report {
	decimals := 18
	symbol := "SALE"
	rate := state.NormalizeRate(new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)), &decimals)
	return &state.Report{
		Snapshot: &state.Snapshot{
			Network:       "sepolia",
			Sale:          common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
			EndpointURL:   "https://rpc.example",
			RateRaw:       rate.Raw,
			Rate:          &rate,
			Cap:           eth(100),
			Raised:        eth(10),
			TokenDecimals: &decimals,
			TokenSymbol:   &symbol,
			Failures:      map[string]error{state.FieldSaleBalance: errors.New("timed out")},
		},
		Tally:     &tally.Tally{Count: 7, Method: tally.DirectCounter, Complete: true},
		FetchedAt: time.Now(),
	}
}

func TestReportView(t *testing.T) {
	out := ReportView(report(), "ETH")
	assert.Contains(t, out, "sepolia")
	assert.Contains(t, out, "1000 SALE per ETH")
	assert.Contains(t, out, "90 ETH", "remaining = cap - raised")
	assert.Contains(t, out, "— timed out")
	assert.Contains(t, out, "7 (counter)")
	assert.NotContains(t, out, "Your balance")
}

func TestReportViewEmpty(t *testing.T) {
	assert.Contains(t, ReportView(nil, "ETH"), "no data yet")
}

func TestTallyLine(t *testing.T) {
	partial := &tally.Tally{Count: 3, Method: tally.LogScan, FromBlock: 100, ToBlock: 250, Windows: 2}
	assert.Equal(t, "3 (log-scan), blocks 100-250 in 2 windows, partial", TallyLine(partial, nil))
	assert.Equal(t, "— rpc down", TallyLine(nil, errors.New("rpc down")))
	assert.Equal(t, "—", TallyLine(nil, nil))
}

func TestResultView(t *testing.T) {
	hash := common.HexToHash("0xabc")
	res := &dispatch.Result{
		Action: "purchase",
		Attempts: []dispatch.Attempt{
			{Candidate: "buyTokens()", Outcome: dispatch.Failed, Class: chain.ClassReverted},
			{Candidate: "buy()", Validated: true, Submitted: true, Outcome: dispatch.Confirmed, Hash: &hash},
		},
	}
	res.Final = res.Attempts[1]
	net := &chain.Network{Explorer: "https://sepolia.etherscan.io"}

	out := ResultView(res, net)
	assert.Contains(t, out, "skipped buyTokens()")
	assert.Contains(t, out, "purchase confirmed via buy()")
	assert.Contains(t, out, "https://sepolia.etherscan.io/tx/"+hash.Hex())
	assert.Equal(t, 1, strings.Count(out, "skipped"))
}

func TestResultViewFailure(t *testing.T) {
	res := &dispatch.Result{Final: dispatch.Attempt{Outcome: dispatch.Failed, Message: "Insufficient funds. Top up ETH."}}
	assert.Contains(t, ResultView(res, nil), "Insufficient funds. Top up ETH.")
}

func TestTxLogTable(t *testing.T) {
	out := TxLogTable([]txlog.Entry{{
		Type:      txlog.TypePurchase,
		Hash:      "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
		Time:      time.Now(),
		Network:   "sepolia",
		Candidate: "buyTokens()",
		Value:     "1500000000000000000",
	}})
	assert.Contains(t, out, "purchase")
	assert.Contains(t, out, "0x1234…cdef")
	assert.Contains(t, out, "1.5")

	assert.Contains(t, TxLogTable(nil), "no transactions recorded")
}
