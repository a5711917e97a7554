package writer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/polyrabbit/token-insight/config"
	"github.com/polyrabbit/token-insight/insight"
	"github.com/polyrabbit/token-insight/model"
)

func sampleReport() *insight.Report {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var history, forecast []model.PricePoint
	for i := 0; i < 24; i++ {
		p := model.PricePoint{Time: start.Add(time.Duration(i) * time.Hour), Price: 50000 + float64(i)*40}
		history = append(history, p)
		forecast = append(forecast, p)
	}
	last := model.PricePoint{Time: start.Add(47 * time.Hour), Price: 51000}
	forecast = append(forecast, last)

	tf, _ := config.DefaultTimeframes().Lookup("1 - Day")
	marketCap := decimal.NewFromInt(1050000000000)
	return &insight.Report{
		Coin:           model.Coin{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		Timeframe:      tf,
		Snapshot:       model.MarketSnapshot{Price: 50000, TotalVolume: 31234567.5, TotalSupply: 21000000},
		MarketCap:      &marketCap,
		History:        history,
		Forecast:       forecast,
		PredictedPrice: 51000,
		PredictionTime: last.Time,
		Change:         2,
		Trend:          insight.Bullish,
		Narrative:      insight.Narrative("Bitcoin", 2, tf.Label),
	}
}

func TestTableWriter_Render(t *testing.T) {
	var out bytes.Buffer
	tw := NewTableWriter(&out)
	tw.Render([]Result{
		{Symbol: "btc", Report: sampleReport()},
		{Symbol: "nope", Err: errors.Wrap(insight.ErrTokenNotFound, "no coin has symbol")},
	})

	text := out.String()
	for _, want := range []string{
		"Bitcoin (BTC)",
		"$50,000",
		"$31,234,567.5",
		"$1,050,000,000,000",
		"$51,000",
		"2.0",
		"bullish",
		"Actual Price",
		"Predicted Price",
		"BITCOIN appears bullish",
		"NOPE: Token not found!",
	} {
		assert.Contains(t, text, want)
	}
}

func TestTableWriter_RenderFailuresOnly(t *testing.T) {
	var out bytes.Buffer
	tw := NewTableWriter(&out)
	tw.Render([]Result{{Symbol: "eth", Err: errors.New("boom")}})

	text := out.String()
	assert.Contains(t, text, "ETH: Something went wrong.")
	assert.NotContains(t, text, colPredictedAt, "no table without reports")
}

func TestTableWriter_Progress(t *testing.T) {
	var out bytes.Buffer
	tw := NewTableWriter(&out)
	progress := tw.Progress("btc")
	progress(insight.StageTokenFound)
	progress(insight.StageFetching)

	text := out.String()
	assert.Contains(t, text, "BTC Token found!")
	assert.Contains(t, text, "BTC Fetching data...")
	assert.Equal(t, 1, strings.Count(text, "Fetching data..."))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.00001234", formatUSD(0.00001234))
	assert.Equal(t, "$1,234.5", formatUSD(1234.5))
}
