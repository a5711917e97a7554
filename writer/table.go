package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uilive"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/polyrabbit/token-insight/insight"
	"github.com/polyrabbit/token-insight/model"
)

const (
	colToken       = "Token"
	colPrice       = "Price"
	colVolume      = "Volume"
	colMarketCap   = "Marketcap"
	colPredicted   = "Predicted"
	colChangePct   = "%Change"
	colTrend       = "Trend"
	colPredictedAt = "Prediction Time"
)

var faint = color.New(color.Faint).SprintFunc()

// Result is the outcome of one symbol; exactly one of Report and Err is set.
type Result struct {
	Symbol string
	Report *insight.Report
	Err    error
}

type tableWriter struct {
	*uilive.Writer
	table       *tablewriter.Table
	ChartHeight int
	ChartWidth  int
}

// Set up ascii table writer
func NewTableWriter(out io.Writer) *tableWriter {
	tw := &tableWriter{Writer: uilive.New(), ChartHeight: 12, ChartWidth: 72}
	tw.Writer.Out = out
	tw.table = tablewriter.NewWriter(tw.Writer)
	tw.table.SetAutoFormatHeaders(false)
	tw.table.SetAutoWrapText(false)
	headers := []string{colToken, colPrice, colVolume, colMarketCap, colPredicted, colChangePct, colTrend, colPredictedAt}
	formattedHeaders := make([]string, len(headers))
	for i, hdr := range headers {
		formattedHeaders[i] = color.YellowString(hdr)
	}
	tw.table.SetHeader(formattedHeaders)
	tw.table.SetRowLine(true)
	tw.table.SetCenterSeparator(faint("-"))
	tw.table.SetColumnSeparator(faint("|"))
	tw.table.SetRowSeparator(faint("-"))
	return tw
}

// Progress shows the latest stage of symbol on a single, rewritten line.
func (tw *tableWriter) Progress(symbol string) insight.Progress {
	return func(stage insight.Stage) {
		mark := faint("…")
		if stage.Done() {
			mark = color.GreenString("✔")
		}
		fmt.Fprintf(tw.Writer, "%s %s %s\n", mark, strings.ToUpper(symbol), stage)
		tw.Flush()
	}
}

func (tw *tableWriter) highlightChange(changePct float64) string {
	changeText := insight.FormatPercent(changePct)
	if changePct == 0 {
		changeText = faint(changeText)
	} else if changePct > 0 {
		changeText = color.GreenString(changeText)
	} else {
		changeText = color.RedString(changeText)
	}
	return changeText
}

func (tw *tableWriter) highlightTrend(trend insight.Trend) string {
	switch trend {
	case insight.Bullish:
		return color.GreenString(trend.String())
	case insight.Bearish:
		return color.RedString(trend.String())
	}
	return faint(trend.String())
}

func formatUSD(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 8)
}

func (tw *tableWriter) row(r *insight.Report) []string {
	marketCap := faint("n/a")
	if r.MarketCap != nil {
		marketCap = "$" + humanize.BigComma(r.MarketCap.BigInt())
	}
	return []string{
		fmt.Sprintf("%s (%s)", r.Coin.Name, strings.ToUpper(r.Coin.Symbol)),
		formatUSD(r.Snapshot.Price),
		formatUSD(r.Snapshot.TotalVolume),
		marketCap,
		formatUSD(r.PredictedPrice),
		tw.highlightChange(r.Change),
		tw.highlightTrend(r.Trend),
		r.PredictionStamp(),
	}
}

func (tw *tableWriter) plot(r *insight.Report) string {
	return asciigraph.PlotMany([][]float64{model.Prices(r.History), model.Prices(r.Forecast)},
		asciigraph.Height(tw.ChartHeight),
		asciigraph.Width(tw.ChartWidth),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Cyan),
		asciigraph.SeriesLegends("Actual Price", "Predicted Price"),
		asciigraph.Caption(fmt.Sprintf("%s - %s, %d samples", r.Coin.Name, r.Timeframe.Label, len(r.History))),
	)
}

// Render replaces the progress line with the summary table, a chart and
// the narrative of each report, followed by failures.
func (tw *tableWriter) Render(results []Result) {
	tw.table.ClearRows()
	var reports []*insight.Report
	for _, res := range results {
		if res.Report != nil {
			reports = append(reports, res.Report)
			tw.table.Append(tw.row(res.Report))
		}
	}
	if len(reports) > 0 {
		tw.table.Render()
	}
	for _, r := range reports {
		fmt.Fprintf(tw.Writer, "\n%s\n\n", tw.plot(r))
		fmt.Fprintf(tw.Writer, "%s %s (%s%%)\n", color.CyanString("🔮"), r.Coin.Name, tw.highlightChange(r.Change))
		for _, line := range strings.Split(r.Narrative, "\n") {
			fmt.Fprintf(tw.Writer, "   %s\n", line)
		}
	}
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(tw.Writer, "%s %s: %s\n", color.RedString("✘"), strings.ToUpper(res.Symbol), insight.Message(res.Err))
		}
	}
	tw.Flush()
}
