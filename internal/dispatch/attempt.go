// Package dispatch submits the sale's write actions: purchases, which probe
// candidate entry points before committing, and owner withdrawals.
package dispatch

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

var (
	ErrInvalidAmount       = errors.New("purchase amount must be positive")
	ErrIdentityMismatch    = errors.New("identity does not match the connected wallet")
	ErrAllCandidatesFailed = errors.New("no purchase entry point accepted the call")
)

// Outcome is the terminal (or last known) state of an attempt.
type Outcome int

const (
	// Pending: submitted but not yet seen mined.
	Pending Outcome = iota
	Confirmed
	// Rejected: stopped before submission by the user or by a pre-check.
	Rejected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Attempt records one candidate: its dry-run and, at most once per action,
// its submission.
type Attempt struct {
	Candidate string
	Validated bool
	Submitted bool
	Hash      *common.Hash
	Outcome   Outcome
	Class     chain.ErrorClass
	// Message is the humanized diagnostic shown to the user.
	Message string
	Err     error
	Receipt *types.Receipt
}

// Result is every attempt of one action plus the final verdict.
type Result struct {
	Action   string
	Attempts []Attempt
	Final    Attempt
}

// Submitted returns the attempt that was broadcast, if any.
func (r *Result) Submitted() (Attempt, bool) {
	for _, a := range r.Attempts {
		if a.Submitted {
			return a, true
		}
	}
	return Attempt{}, false
}
