package ui

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/dispatch"
	"github.com/Mohsinsiddi/w3sale/internal/state"
	"github.com/Mohsinsiddi/w3sale/internal/tally"
	"github.com/Mohsinsiddi/w3sale/internal/txlog"
)

const unavailable = "—"

// ReportView renders a dashboard report as a key/value block. Fields that
// could not be read show a dash and the short reason.
func ReportView(r *state.Report, currency string) string {
	if r == nil || r.Snapshot == nil {
		return StyleMeta.Render("  no data yet")
	}
	s := r.Snapshot
	symbol := s.Symbol("tokens")

	pairs := [][2]string{
		{"Network", s.Network},
		{"Endpoint", endpointLine(s)},
		{"Sale", s.Sale.Hex()},
	}
	if s.Token != nil {
		pairs = append(pairs, [2]string{"Token", s.Token.Hex()})
	}
	pairs = append(pairs,
		[2]string{"Rate", rateLine(s, symbol, currency)},
		[2]string{"Cap", ether(s.Cap, currency, s.Failures[state.FieldCap])},
		[2]string{"Raised", ether(s.Raised, currency, s.Failures[state.FieldRaised])},
		[2]string{"Remaining", ether(s.Remaining(), currency, nil)},
		[2]string{"Sale balance", ether(s.SaleBalance, currency, s.Failures[state.FieldSaleBalance])},
	)
	if s.Caller != nil {
		line := failed(s.Failures[state.FieldCallerBalance])
		if s.CallerTokenBalance != nil {
			line = chain.FormatUnits(s.CallerTokenBalance, s.Decimals()) + " " + symbol
		}
		pairs = append(pairs, [2]string{"Your balance", line})
	}
	pairs = append(pairs,
		[2]string{"Receipts minted", TallyLine(r.Tally, r.TallyErr)},
		[2]string{"Updated", r.FetchedAt.Format(time.TimeOnly)},
	)
	return KeyValueBlock("Sale", pairs)
}

// TallyLine summarises a mint count.
func TallyLine(t *tally.Tally, err error) string {
	if t == nil {
		return failed(err)
	}
	line := fmt.Sprintf("%d (%s)", t.Count, t.Method)
	if t.Method == tally.LogScan {
		line += fmt.Sprintf(", blocks %d-%d in %d windows", t.FromBlock, t.ToBlock, t.Windows)
	}
	if !t.Complete {
		line += ", partial"
	}
	return line
}

// ResultView renders every attempt of a write action and its outcome.
func ResultView(res *dispatch.Result, net *chain.Network) string {
	var sb strings.Builder
	for _, a := range res.Attempts {
		if a.Validated || a.Outcome != dispatch.Failed {
			continue
		}
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("  skipped %-20s %s", a.Candidate, a.Class)) + "\n")
	}

	f := res.Final
	switch f.Outcome {
	case dispatch.Confirmed:
		sb.WriteString(Success(fmt.Sprintf("%s confirmed via %s", res.Action, f.Candidate)) + "\n")
	case dispatch.Pending:
		sb.WriteString(Warn(fmt.Sprintf("%s submitted via %s. %s", res.Action, f.Candidate, f.Message)) + "\n")
	case dispatch.Rejected:
		sb.WriteString(Warn(f.Message) + "\n")
	default:
		sb.WriteString(Err(f.Message) + "\n")
	}
	if f.Hash != nil {
		sb.WriteString("  " + Meta("tx ") + Addr(f.Hash.Hex()) + "\n")
		if net != nil {
			if url := net.TxURL(f.Hash.Hex()); url != "" {
				sb.WriteString("  " + Meta(url) + "\n")
			}
		}
	}
	return sb.String()
}

// TxLogTable renders journal entries, newest first as given.
func TxLogTable(entries []txlog.Entry) string {
	if len(entries) == 0 {
		return StyleMeta.Render("  no transactions recorded") + "\n"
	}
	t := NewTable([]Column{
		{Title: "Time", Width: 19},
		{Title: "Type", Width: 9},
		{Title: "Network", Width: 10},
		{Title: "Hash", Width: 13},
		{Title: "Value", Width: 18},
		{Title: "Via", Width: 20},
	})
	for _, e := range entries {
		value := ""
		if w, ok := new(big.Int).SetString(e.Value, 10); ok {
			value = chain.FormatEther(w)
		}
		t.AddRow(Row{
			e.Time.Local().Format(time.DateTime),
			e.Type,
			e.Network,
			TruncateAddr(e.Hash),
			value,
			e.Candidate,
		})
	}
	return t.Render()
}

func endpointLine(s *state.Snapshot) string {
	if err := s.Failures[state.FieldEndpoint]; err != nil {
		return failed(err)
	}
	return fmt.Sprintf("%s %s", s.Endpoint, s.EndpointURL)
}

func rateLine(s *state.Snapshot, symbol, currency string) string {
	if s.Rate == nil {
		return failed(s.Failures[state.FieldRate])
	}
	line := fmt.Sprintf("%s %s per %s", s.Rate.PerNative.String(), symbol, currency)
	var notes []string
	if s.Rate.Ambiguous {
		notes = append(notes, "scaling uncertain")
	}
	if s.Rate.DecimalsAssumed {
		notes = append(notes, "decimals assumed 18")
	}
	if len(notes) > 0 {
		line += " (" + strings.Join(notes, ", ") + ")"
	}
	return line
}

func ether(wei *big.Int, currency string, err error) string {
	if wei == nil {
		return failed(err)
	}
	return chain.FormatEther(wei) + " " + currency
}

func failed(err error) string {
	if err == nil {
		return unavailable
	}
	msg := err.Error()
	if len(msg) > 48 {
		msg = msg[:47] + "…"
	}
	return unavailable + " " + msg
}
