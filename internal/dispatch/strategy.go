package dispatch

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
)

// StrategyKind tags how a strategy reaches the contract.
type StrategyKind int

const (
	// Call invokes a named function.
	Call StrategyKind = iota
	// Transfer sends value with empty calldata.
	Transfer
)

func (k StrategyKind) String() string {
	if k == Transfer {
		return "transfer"
	}
	return "call"
}

// Strategy is one way of performing a sale action.
type Strategy struct {
	Name   string
	Kind   StrategyKind
	Method abi.Method
	// Args builds the call arguments for identity; nil means none.
	Args func(identity common.Address) []any
	// Gas is used when the node cannot estimate.
	Gas uint64
}

// Calldata encodes the strategy's call for identity.
func (s Strategy) Calldata(identity common.Address) ([]byte, error) {
	if s.Kind == Transfer {
		return nil, nil
	}
	var args []any
	if s.Args != nil {
		args = s.Args(identity)
	}
	packed, err := s.Method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", s.Name, err)
	}
	return append(append([]byte{}, s.Method.ID...), packed...), nil
}

var addressType, _ = abi.NewType("address", "", nil)

func payable(name string, inputs abi.Arguments, args func(common.Address) []any) Strategy {
	m := abi.NewMethod(name, name, abi.Function, "payable", false, true, inputs, nil)
	return Strategy{Name: m.Sig, Kind: Call, Method: m, Args: args, Gas: config.GasLimitPurchase}
}

// PurchaseStrategies is the ordered table of purchase entry points, ending
// with a plain value transfer.
var PurchaseStrategies = []Strategy{
	payable("buyTokens", nil, nil),
	payable("buyTokens", abi.Arguments{{Name: "beneficiary", Type: addressType}},
		func(identity common.Address) []any { return []any{identity} }),
	payable("buy", nil, nil),
	payable("purchase", nil, nil),
	{Name: "transfer", Kind: Transfer, Gas: config.GasLimitPurchase},
}

// WithdrawStrategy calls the sale's withdraw().
var WithdrawStrategy = Strategy{
	Name:   sale.CrowdsaleABI.Methods["withdraw"].Sig,
	Kind:   Call,
	Method: sale.CrowdsaleABI.Methods["withdraw"],
	Gas:    config.GasLimitContractCall,
}
