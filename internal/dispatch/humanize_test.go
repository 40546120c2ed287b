package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		name       string
		class      chain.ErrorClass
		diagnostic string
		want       string
	}{
		{"canceled", chain.ClassUserRejected, "user rejected", "Action canceled."},
		{"funds", chain.ClassInsufficientFunds, "insufficient funds for gas", "Insufficient funds. Top up ETH."},
		{"network", chain.ClassWrongNetwork, "", "Please switch to sepolia to continue."},
		{"owner", chain.ClassNotOwner, "execution reverted: Ownable: caller is not the owner", "Only the sale owner can withdraw."},
		{"revert with reason", chain.ClassReverted, "execution reverted: sale closed", "Transaction reverted: sale closed"},
		{"bare revert", chain.ClassReverted, "execution reverted", "Transaction reverted."},
		{"timeout", chain.ClassTimeout, "deadline exceeded", "The node did not answer in time. Try again."},
		{"unknown passes diagnostic", chain.ClassUnknown, "nonce too low", "nonce too low"},
		{"unknown empty", chain.ClassUnknown, "", "Transaction failed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dispatch.Humanize(tt.class, tt.diagnostic, "sepolia", "ETH"))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", dispatch.Pending.String())
	assert.Equal(t, "confirmed", dispatch.Confirmed.String())
	assert.Equal(t, "rejected", dispatch.Rejected.String())
	assert.Equal(t, "failed", dispatch.Failed.String())
}

func TestPurchaseStrategyOrder(t *testing.T) {
	var names []string
	for _, s := range dispatch.PurchaseStrategies {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"buyTokens()", "buyTokens(address)", "buy()", "purchase()", "transfer"}, names)
	assert.Equal(t, dispatch.Transfer, dispatch.PurchaseStrategies[len(names)-1].Kind)
}
