package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
)

// Confirm prompts on stdout with a yes/no question and reads stdin.
func Confirm(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, prompt)
}

// ConfirmFrom prompts on out and reads the answer from in. Anything but
// y/yes is a no.
func ConfirmFrom(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// TxApproval returns a signer prompt that shows the transaction and asks the
// user to approve it. A no becomes chain.ErrUserRejected in the signer.
func TxApproval(in io.Reader, out io.Writer, currency string) wallet.ApprovePrompt {
	return func(_ context.Context, w *wallet.Wallet, tx *types.Transaction) (bool, error) {
		to := "(contract creation)"
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		pairs := [][2]string{
			{"From", w.Address + " (" + w.Name + ")"},
			{"To", to},
			{"Value", chain.FormatEther(tx.Value()) + " " + currency},
			{"Gas limit", fmt.Sprintf("%d", tx.Gas())},
			{"Max fee", chain.FormatUnits(tx.GasFeeCap(), 9) + " gwei"},
		}
		if len(tx.Data()) >= 4 {
			pairs = append(pairs, [2]string{"Selector", fmt.Sprintf("0x%x", tx.Data()[:4])})
		}
		fmt.Fprintln(out, KeyValueBlock("Sign transaction", pairs))
		return ConfirmFrom(in, out, "Sign and send?"), nil
	}
}
