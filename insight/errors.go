package insight

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/polyrabbit/token-insight/forecast"
)

var (
	ErrEmptySymbol      = errors.New("token symbol is required")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidPrice     = errors.New("current price must be positive")
)

// UpstreamError marks a failure at one of the market-data boundaries:
// transport, non-2xx status, empty or malformed payloads.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type Kind int

const (
	KindInternal Kind = iota
	KindBadInput
	KindNotFound
	KindUpstream
	KindForecast
	KindCanceled
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "bad_input"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindForecast:
		return "forecast"
	case KindCanceled:
		return "canceled"
	case KindTimeout:
		return "timeout"
	}
	return "internal"
}

// Classify tells front ends how to present err.
func Classify(err error) Kind {
	var (
		fitErr      *forecast.FitError
		upstreamErr *UpstreamError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case isTimeout(err):
		return KindTimeout
	case errors.Is(err, ErrEmptySymbol), errors.Is(err, ErrUnknownTimeframe):
		return KindBadInput
	case errors.Is(err, ErrTokenNotFound):
		return KindNotFound
	case errors.As(err, &fitErr):
		return KindForecast
	case errors.As(err, &upstreamErr):
		return KindUpstream
	}
	return KindInternal
}

// isTimeout covers both context deadlines and transport timeouts such as
// http.Client.Timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Message is the user-facing sentence for err.
func Message(err error) string {
	switch Classify(err) {
	case KindBadInput:
		return err.Error()
	case KindNotFound:
		return "Token not found!"
	case KindUpstream:
		return "Market data is unavailable right now, please try again later."
	case KindForecast:
		return "Not enough price history to make a prediction."
	case KindCanceled:
		return "Request canceled."
	case KindTimeout:
		return "Market data took too long to respond, please try again later."
	}
	return "Something went wrong."
}
