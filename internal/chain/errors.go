package chain

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Mohsinsiddi/w3sale/internal/timebox"
)

// Errors produced or recognised at the node and wallet boundaries.
var (
	ErrRangeRejected     = errors.New("log query range rejected by node")
	ErrRateLimited       = errors.New("request rate limited by node")
	ErrUserRejected      = errors.New("request rejected by user")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrReverted          = errors.New("execution reverted")
	ErrWrongNetwork      = errors.New("wrong network")
)

// ErrorClass buckets a remote failure by how callers recover from it.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTimeout
	ClassRangeRejected
	ClassRateLimited
	ClassUserRejected
	ClassInsufficientFunds
	ClassNotOwner
	ClassReverted
	ClassWrongNetwork
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassRangeRejected:
		return "range-rejected"
	case ClassRateLimited:
		return "rate-limited"
	case ClassUserRejected:
		return "user-rejected"
	case ClassInsufficientFunds:
		return "insufficient-funds"
	case ClassNotOwner:
		return "not-owner"
	case ClassReverted:
		return "reverted"
	case ClassWrongNetwork:
		return "wrong-network"
	default:
		return "unknown"
	}
}

// JSON-RPC codes with a fixed meaning across clients.
const (
	codeUserRejected = 4001   // EIP-1193
	codeReverted     = 3      // geth: execution reverted with data
	codeLimit        = -32005 // infura/alchemy: limit exceeded
)

// Custom error selectors worth recognising in revert data.
var ownableUnauthorized = crypto.Keccak256([]byte("OwnableUnauthorizedAccount(address)"))[:4]

// Classify maps an error from a node call, a dry-run or the wallet into an
// ErrorClass. Order matters: range rejections are checked before rate limits
// because some providers report both under -32005.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	switch {
	case errors.Is(err, ErrRangeRejected):
		return ClassRangeRejected
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrUserRejected):
		return ClassUserRejected
	case errors.Is(err, ErrInsufficientFunds):
		return ClassInsufficientFunds
	case errors.Is(err, ErrNotOwner):
		return ClassNotOwner
	case errors.Is(err, ErrWrongNetwork):
		return ClassWrongNetwork
	case errors.Is(err, ErrReverted):
		return ClassReverted
	case errors.Is(err, timebox.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return ClassRateLimited
	}

	if data := revertData(err); len(data) >= 4 && bytes.Equal(data[:4], ownableUnauthorized) {
		return ClassNotOwner
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "user rejected", "user denied", "user canceled", "user cancelled", "request rejected"):
		return ClassUserRejected
	case containsAny(msg, "query returned more than", "block range", "range too large", "range is too large",
		"too many blocks", "exceed maximum block range", "exceeds max range", "response size exceeded",
		"log response size", "query timeout exceeded"):
		return ClassRangeRejected
	case containsAny(msg, "too many requests", "rate limit", "request limit", "exceeded the quota", "capacity exceeded"):
		return ClassRateLimited
	case strings.Contains(msg, "insufficient funds"):
		return ClassInsufficientFunds
	case containsAny(msg, "caller is not the owner", "not the owner", "ownableunauthorizedaccount", "only owner"):
		return ClassNotOwner
	case containsAny(msg, "wrong network", "unsupported chain", "invalid chain id", "chain mismatch"):
		return ClassWrongNetwork
	case strings.Contains(msg, "revert"):
		return ClassReverted
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return ClassUserRejected
		case codeReverted:
			return ClassReverted
		case codeLimit:
			return ClassRateLimited
		}
	}
	return ClassUnknown
}

// Diagnostic extracts the most informative message carried by err: a decoded
// revert reason when revert data is attached, otherwise the node's message
// trimmed to its "execution reverted" tail, otherwise the error text.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	if data := revertData(err); len(data) > 0 {
		if reason, uerr := abi.UnpackRevert(data); uerr == nil && reason != "" {
			return "execution reverted: " + reason
		}
		if len(data) >= 4 && bytes.Equal(data[:4], ownableUnauthorized) {
			return "execution reverted: OwnableUnauthorizedAccount"
		}
	}
	return extractRevertReason(err.Error())
}

// extractRevertReason tries to pull the revert reason out of an RPC error message.
func extractRevertReason(errMsg string) string {
	if idx := strings.Index(errMsg, "execution reverted"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx:])
	}
	return strings.TrimSpace(errMsg)
}

// revertData returns the raw revert payload attached to a JSON-RPC error.
func revertData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	s, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil
	}
	b, derr := hexutil.Decode(s)
	if derr != nil {
		return nil
	}
	return b
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
