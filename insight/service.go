// Package insight runs one prediction end to end: token lookup, market
// snapshot, price history, forecast and the narrative built on top.
package insight

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/polyrabbit/token-insight/config"
	"github.com/polyrabbit/token-insight/forecast"
	"github.com/polyrabbit/token-insight/metrics"
	"github.com/polyrabbit/token-insight/model"
)

// MarketSource is the upstream market-data API.
type MarketSource interface {
	LookupToken(ctx context.Context, symbol string) (model.Coin, bool, error)
	MarketSnapshot(ctx context.Context, coinID string) (model.MarketSnapshot, error)
	History(ctx context.Context, coinID string, days int) ([]model.PricePoint, error)
}

type Stage int

const (
	StageTokenFound Stage = iota
	StageFetching
	StageFetched
	StagePredicting
	StagePredicted
)

func (s Stage) String() string {
	switch s {
	case StageTokenFound:
		return "Token found!"
	case StageFetching:
		return "Fetching data..."
	case StageFetched:
		return "Data extracted successfully!"
	case StagePredicting:
		return "Predicting data..."
	case StagePredicted:
		return "Prediction complete!"
	}
	return "Working..."
}

// Done reports whether s closes a step rather than starting one.
func (s Stage) Done() bool {
	return s == StageTokenFound || s == StageFetched || s == StagePredicted
}

// Progress is told about every stage a run goes through.
type Progress func(Stage)

type Request struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

type Report struct {
	Coin           model.Coin           `json:"coin"`
	Timeframe      config.Timeframe     `json:"timeframe"`
	Snapshot       model.MarketSnapshot `json:"snapshot"`
	MarketCap      *decimal.Decimal     `json:"market_cap,omitempty"`
	History        []model.PricePoint   `json:"history"`
	Forecast       []model.PricePoint   `json:"forecast"`
	PredictedPrice float64              `json:"predicted_price"`
	PredictionTime time.Time            `json:"prediction_time"`
	Change         float64              `json:"change"`
	Trend          Trend                `json:"trend"`
	Narrative      string               `json:"narrative"`
}

func (r *Report) PredictionStamp() string {
	return r.PredictionTime.Local().Format(model.StampLayout)
}

type Service struct {
	source     MarketSource
	timeframes config.Timeframes
	horizon    int
	modelName  string
}

// NewService keeps its own copy of timeframes, callers may not change the
// table afterwards.
func NewService(source MarketSource, timeframes config.Timeframes, horizon int, modelName string) (*Service, error) {
	if len(timeframes) == 0 {
		return nil, errors.New("no timeframes configured")
	}
	if horizon <= 0 {
		return nil, errors.Errorf("horizon must be positive, got %d", horizon)
	}
	if _, err := forecast.New(modelName); err != nil {
		return nil, err
	}
	return &Service{
		source:     source,
		timeframes: timeframes.Clone(),
		horizon:    horizon,
		modelName:  modelName,
	}, nil
}

func (s *Service) Timeframes() config.Timeframes {
	return s.timeframes.Clone()
}

// Run handles one submission. Every step runs in order and the first
// failure ends the run; progress may be nil.
func (s *Service) Run(ctx context.Context, req Request, progress Progress) (*Report, error) {
	if progress == nil {
		progress = func(Stage) {}
	}
	logEntry := logrus.WithFields(logrus.Fields{"symbol": req.Symbol, "timeframe": req.Timeframe})
	start := time.Now()
	report, err := s.run(ctx, req, progress)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		kind := Classify(err)
		metrics.RecordInsight(kind.String())
		logEntry = logEntry.WithError(err).WithField("elapsed", elapsed.String())
		if kind == KindInternal || kind == KindUpstream || kind == KindTimeout {
			logEntry.Warn("Failed to make insight")
		} else {
			logEntry.Info("Insight ended early")
		}
		return nil, err
	}
	metrics.RecordInsight("ok")
	logEntry.WithField("elapsed", elapsed.String()).Infof("%s is %s, %s%%", report.Coin.Name, report.Trend, FormatPercent(report.Change))
	return report, nil
}

func (s *Service) run(ctx context.Context, req Request, progress Progress) (*Report, error) {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	timeframe, ok := s.timeframes.Lookup(req.Timeframe)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTimeframe, "%q", req.Timeframe)
	}

	coin, found, err := s.source.LookupToken(ctx, symbol)
	if err != nil {
		return nil, &UpstreamError{Op: "lookup token", Err: err}
	}
	if !found {
		return nil, errors.Wrapf(ErrTokenNotFound, "no coin has symbol %q", symbol)
	}
	progress(StageTokenFound)

	if _, err := s.source.MarketSnapshot(ctx, coin.ID); err != nil {
		return nil, &UpstreamError{Op: "market snapshot", Err: err}
	}

	progress(StageFetching)
	history, err := s.source.History(ctx, coin.ID, timeframe.Days)
	if err != nil {
		return nil, &UpstreamError{Op: "price history", Err: err}
	}
	progress(StageFetched)

	progress(StagePredicting)
	m, err := forecast.New(s.modelName)
	if err != nil {
		return nil, err
	}
	predicted, err := forecast.Forecast(m, history, s.horizon, timeframe.Step)
	if err != nil {
		return nil, err
	}
	if len(predicted) == 0 {
		return nil, &forecast.FitError{Model: m.Name(), Err: errors.New("empty prediction")}
	}
	progress(StagePredicted)

	// Refresh, the first snapshot may be stale after fitting
	snapshot, err := s.source.MarketSnapshot(ctx, coin.ID)
	if err != nil {
		return nil, &UpstreamError{Op: "market snapshot", Err: err}
	}

	last := predicted[len(predicted)-1]
	predictedPrice := ClampPrice(last.Price)
	change, err := PriceChange(predictedPrice, snapshot.Price)
	if err != nil {
		return nil, &UpstreamError{Op: "market snapshot", Err: errors.Wrapf(err, "price of %s is %v", coin.ID, snapshot.Price)}
	}

	report := &Report{
		Coin:           coin,
		Timeframe:      timeframe,
		Snapshot:       snapshot,
		History:        history,
		Forecast:       predicted,
		PredictedPrice: predictedPrice,
		PredictionTime: last.Time,
		Change:         change,
		Trend:          TrendOf(change),
		Narrative:      Narrative(coin.Name, change, timeframe.Label),
	}
	if marketCap, ok := MarketCap(snapshot); ok {
		report.MarketCap = &marketCap
	}
	return report, nil
}
