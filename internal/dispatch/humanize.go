package dispatch

import (
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
)

// Humanize renders a failure for the user. diagnostic is the richest message
// available (see chain.Diagnostic).
func Humanize(class chain.ErrorClass, diagnostic, network, currency string) string {
	switch class {
	case chain.ClassUserRejected:
		return "Action canceled."
	case chain.ClassInsufficientFunds:
		return "Insufficient funds. Top up " + currency + "."
	case chain.ClassWrongNetwork:
		return "Please switch to " + network + " to continue."
	case chain.ClassNotOwner:
		return "Only the sale owner can withdraw."
	case chain.ClassReverted:
		if reason := revertReason(diagnostic); reason != "" {
			return "Transaction reverted: " + reason
		}
		return "Transaction reverted."
	case chain.ClassTimeout:
		return "The node did not answer in time. Try again."
	}
	if diagnostic == "" {
		return "Transaction failed."
	}
	return diagnostic
}

// revertReason returns the text after "execution reverted:", if any.
func revertReason(diagnostic string) string {
	_, reason, ok := strings.Cut(diagnostic, "execution reverted")
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(reason), ":"))
}

// rank orders failed probes by how useful their diagnostic is to the user.
func rank(a Attempt) int {
	switch a.Class {
	case chain.ClassInsufficientFunds:
		return 4
	case chain.ClassWrongNetwork:
		return 3
	case chain.ClassReverted:
		if revertReason(chain.Diagnostic(a.Err)) != "" {
			return 2
		}
		return 1
	}
	return 0
}

// best picks the most informative failed attempt; ties keep the earliest.
func best(attempts []Attempt) (Attempt, bool) {
	if len(attempts) == 0 {
		return Attempt{}, false
	}
	top := attempts[0]
	for _, a := range attempts[1:] {
		if rank(a) > rank(top) {
			top = a
		}
	}
	return top, true
}
