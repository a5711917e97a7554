package insight

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/polyrabbit/token-insight/forecast"
)

// transportTimeout mimics the error of an http.Client that ran out of time
type transportTimeout struct{}

func (transportTimeout) Error() string   { return "Client.Timeout exceeded while awaiting headers" }
func (transportTimeout) Timeout() bool   { return true }
func (transportTimeout) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		err     error
		kind    Kind
		message string
	}{
		{ErrEmptySymbol, KindBadInput, "token symbol is required"},
		{errors.Wrapf(ErrUnknownTimeframe, "%q", "3 - Eons"), KindBadInput, `"3 - Eons": unknown timeframe`},
		{errors.Wrap(ErrTokenNotFound, "no coin has symbol"), KindNotFound, "Token not found!"},
		{&UpstreamError{Op: "price history", Err: errors.New("HTTP 503")}, KindUpstream,
			"Market data is unavailable right now, please try again later."},
		{fmt.Errorf("run: %w", &forecast.FitError{Model: "additive", Err: errors.New("need at least 2 samples")}), KindForecast,
			"Not enough price history to make a prediction."},
		{&UpstreamError{Op: "lookup token", Err: context.Canceled}, KindCanceled, "Request canceled."},
		{&UpstreamError{Op: "price history", Err: errors.Wrap(context.DeadlineExceeded, "GET market_chart")}, KindTimeout,
			"Market data took too long to respond, please try again later."},
		{&UpstreamError{Op: "market snapshot", Err: &url.Error{Op: "Get", URL: "https://api.coingecko.com", Err: transportTimeout{}}},
			KindTimeout, "Market data took too long to respond, please try again later."},
		{&UpstreamError{Op: "market snapshot", Err: &url.Error{Op: "Get", URL: "https://api.coingecko.com", Err: errors.New("connection refused")}},
			KindUpstream, "Market data is unavailable right now, please try again later."},
		{errors.New("boom"), KindInternal, "Something went wrong."},
	}
	for _, c := range cases {
		t.Run(c.kind.String(), func(t *testing.T) {
			assert.Equal(t, c.kind, Classify(c.err))
			assert.Equal(t, c.message, Message(c.err))
		})
	}
}

func TestStage(t *testing.T) {
	assert.Equal(t, "Token found!", StageTokenFound.String())
	assert.Equal(t, "Data extracted successfully!", StageFetched.String())
	assert.Equal(t, "Prediction complete!", StagePredicted.String())
	assert.True(t, StagePredicted.Done())
	assert.False(t, StageFetching.Done())
	assert.False(t, StagePredicting.Done())
}
