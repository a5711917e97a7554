package forecast

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/polyrabbit/token-insight/model"
)

// linearModel is an ordinary least squares trend line, price over seconds.
type linearModel struct {
	origin time.Time
	alpha  float64
	beta   float64
	fitted bool
}

func (m *linearModel) Name() string {
	return "linear"
}

func (m *linearModel) Fit(history []model.PricePoint) error {
	if err := checkHistory(m.Name(), history); err != nil {
		return err
	}
	m.origin = history[0].Time
	xs := make([]float64, len(history))
	for i, p := range history {
		xs[i] = p.Time.Sub(m.origin).Seconds()
	}
	m.alpha, m.beta = stat.LinearRegression(xs, model.Prices(history), nil, false)
	if math.IsNaN(m.alpha) || math.IsNaN(m.beta) {
		return &FitError{Model: m.Name(), Err: errors.New("regression did not converge")}
	}
	m.fitted = true
	return nil
}

func (m *linearModel) Predict(timeline []time.Time) ([]model.PricePoint, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	predicted := make([]model.PricePoint, len(timeline))
	for i, t := range timeline {
		predicted[i] = model.PricePoint{Time: t, Price: m.alpha + m.beta*t.Sub(m.origin).Seconds()}
	}
	return predicted, nil
}

func init() {
	Register("linear", func() Model { return new(linearModel) })
}
