package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

const defaultTop = 20

// Console implementa ports.Notifier.
type Console struct {
	out    io.Writer
	top    int
	detail bool
}

// NewConsole crea un notificador que escribe a stdout.
// top limita las filas del ranking; detail añade el desglose del mejor par.
func NewConsole(top int, detail bool) *Console {
	return NewConsoleWriter(os.Stdout, top, detail)
}

// NewConsoleWriter crea un notificador sobre w (tests).
func NewConsoleWriter(w io.Writer, top int, detail bool) *Console {
	if top <= 0 {
		top = defaultTop
	}
	return &Console{out: w, top: top, detail: detail}
}

// Notify imprime el ranking, los fallos y opcionalmente el desglose.
func (c *Console) Notify(_ context.Context, run domain.SweepRun) error {
	fmt.Fprintf(c.out, "\n[%s] sweep %s — %d instruments, %d pairs, %d failed (%s)\n",
		time.Now().Format("15:04:05"), shortID(run.ID),
		len(run.Instruments), len(run.Records), len(run.Failures),
		run.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.out, "  capital $%.2f | $%.2f per buy\n",
		run.Params.StartingCash, run.Params.TradeSize)

	if len(run.Records) == 0 {
		fmt.Fprintln(c.out, "  no threshold pairs with buy < sell")
	} else if err := c.printRanking(run.Records); err != nil {
		return err
	}

	c.printFailures(run.Failures)

	if best, ok := run.Best(); ok && c.detail {
		return c.printBreakdown(best)
	}
	return nil
}

// printRanking imprime los top N records.
func (c *Console) printRanking(records []domain.SweepRecord) error {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Buy", "Sell", "Total profit", "Mean/inst", "StdDev", "Buys", "Sells", "Status")

	for i, rec := range records {
		if i >= c.top {
			break
		}
		mean, std := dispersion(rec.Profits())
		buys, sells := rec.Totals()
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%g", rec.Pair.Buy),
			fmt.Sprintf("%g", rec.Pair.Sell),
			fmt.Sprintf("$%.2f", rec.AggregateProfit),
			fmt.Sprintf("$%.2f", mean),
			fmt.Sprintf("$%.2f", std),
			fmt.Sprintf("%d", buys),
			fmt.Sprintf("%d", sells),
			status(rec),
		)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("notify: render ranking: %w", err)
	}
	if len(records) > c.top {
		fmt.Fprintf(c.out, "  ... %d more pairs\n", len(records)-c.top)
	}
	fmt.Fprintln(c.out, "  Status: OK | NO SELLS = valid run without closed trades | PARTIAL = instruments excluded")
	return nil
}

// printFailures lista los instrumentos excluidos: no cuentan como beneficio 0.
func (c *Console) printFailures(failures []domain.InstrumentFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n  FAILED (excluded from every total):\n")
	for _, f := range failures {
		fmt.Fprintf(c.out, "    %-8s %v\n", f.Symbol, f.Err)
	}
}

// printBreakdown imprime el resultado por instrumento del mejor par.
func (c *Console) printBreakdown(rec domain.SweepRecord) error {
	fmt.Fprintf(c.out, "\n  Best pair buy<%g sell>%g\n", rec.Pair.Buy, rec.Pair.Sell)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Final cash", "Profit", "Profit %", "Buys", "Sells", "Open shares", "Open cost")
	for _, ir := range rec.Results {
		r := ir.Result
		table.Append(
			ir.Symbol,
			fmt.Sprintf("$%.2f", r.FinalCash),
			fmt.Sprintf("$%.2f", r.TotalProfit),
			fmt.Sprintf("%.2f%%", r.ProfitPercentage),
			fmt.Sprintf("%d", r.BuyCount),
			fmt.Sprintf("%d", r.SellCount),
			fmt.Sprintf("%d", r.OpenShares),
			fmt.Sprintf("$%.2f", r.OpenCost),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify: render breakdown: %w", err)
	}
	fmt.Fprintln(c.out, "  Open positions are not marked to market.")
	return nil
}

// dispersion devuelve media y desviación típica muestral (0 con < 2 valores).
func dispersion(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

func status(rec domain.SweepRecord) string {
	if !rec.Complete() {
		return "PARTIAL -" + strings.Join(rec.Excluded, ",")
	}
	if _, sells := rec.Totals(); sells == 0 {
		return "NO SELLS"
	}
	return "OK"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
