package scoring

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/mixh8/Truth-Bench/internal/domain"
)

// WriteReport renders the ranked benchmark results as a table.
func WriteReport(w io.Writer, scores []domain.ModelScore) {
	fmt.Fprintln(w, "=== TRUTHBENCH RESULTS ===")

	table := tablewriter.NewWriter(w)
	table.Header("#", "Agent", "ROI", "Bankroll", "Brier", "Accuracy", "Win rate", "Trades", "Sharpe")

	for rank, s := range scores {
		table.Append(
			fmt.Sprintf("%d", rank+1),
			s.AgentName,
			fmt.Sprintf("%+.2f%%", s.ROI*100),
			fmt.Sprintf("$%.2f", s.FinalBankroll/100),
			fmt.Sprintf("%.4f", s.BrierScore),
			fmt.Sprintf("%.1f%%", s.Accuracy*100),
			fmt.Sprintf("%.1f%%", s.WinRate*100),
			fmt.Sprintf("%d", s.TotalTrades),
			fmt.Sprintf("%.2f", s.SharpeRatio),
		)
	}

	table.Render()
}
