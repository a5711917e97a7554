package insight

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/polyrabbit/token-insight/model"
)

type Trend int

const (
	Neutral Trend = iota
	Bullish
	Bearish
)

func (t Trend) String() string {
	switch t {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	}
	return "neutral"
}

func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ClampPrice floors a predicted price at zero.
func ClampPrice(predicted float64) float64 {
	if predicted <= 0 {
		return 0
	}
	return predicted
}

var hundred = decimal.NewFromInt(100)

// PriceChange is the percentage move from current to predicted, rounded to
// two places half to even, negative when predicted is below current.
func PriceChange(predicted, current float64) (float64, error) {
	if current <= 0 {
		return 0, ErrInvalidPrice
	}
	p, c := decimal.NewFromFloat(predicted), decimal.NewFromFloat(current)
	pct := p.Sub(c).Abs().Div(c).Mul(hundred).RoundBank(2)
	if predicted < current {
		pct = pct.Neg()
	}
	change, _ := pct.Float64()
	return change, nil
}

// TrendOf classifies a rounded change; a zero change is neutral.
func TrendOf(change float64) Trend {
	switch {
	case change > 0:
		return Bullish
	case change < 0:
		return Bearish
	}
	return Neutral
}

// FormatPercent prints the shortest form of change that keeps at least
// one decimal place, eg. "2.0", "-1.25".
func FormatPercent(change float64) string {
	if change == 0 {
		return "0.0"
	}
	text := strconv.FormatFloat(change, 'f', -1, 64)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}

const (
	bullishText = "The current market price of %s appears bullish, with a projected surge of %s%% in the next %s.\n" +
		"This hints at increased demand and a favorable market trend. Investors seeking high-risk investments " +
		"may find the project enticing due to the short-term profit potential.\n" +
		"However, investors should always be wary of the associated risks when considering such a move."
	bearishText = "The present market price of %s seems to be bearish, with a projected dip of %s%% in the next %s.\n" +
		"This suggests a decrease in demand and a negative market trend. Investors who are willing to take on " +
		"high-risk investments may find the project unappealing due to its potential for short-term losses.\n" +
		"Therefore, investors should exercise caution and carefully assess the risks involved in such a decision."
	neutralText = "The market price of %s looks steady, with a projected change of %s%% in the next %s.\n" +
		"Demand and supply appear balanced and no clear trend stands out.\n" +
		"Investors may want to wait for a clearer signal before making a move."
)

// Narrative is the canned summary for a change over the named timeframe.
func Narrative(coinName string, change float64, timeframe string) string {
	format := neutralText
	switch TrendOf(change) {
	case Bullish:
		format = bullishText
	case Bearish:
		format = bearishText
	}
	return fmt.Sprintf(format, strings.ToUpper(coinName), FormatPercent(change), timeframe)
}

// MarketCap is total supply times price, rounded to a whole dollar half
// to even. ok is false when upstream reported no supply.
func MarketCap(snapshot model.MarketSnapshot) (marketCap decimal.Decimal, ok bool) {
	if snapshot.TotalSupply <= 0 {
		return decimal.Zero, false
	}
	supply := decimal.NewFromFloat(snapshot.TotalSupply)
	return supply.Mul(decimal.NewFromFloat(snapshot.Price)).RoundBank(0), true
}
