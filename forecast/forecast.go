// Package forecast fits univariate price series and predicts them on a
// timeline that continues the history at a fixed frequency.
package forecast

import (
	"time"

	"github.com/pkg/errors"

	"github.com/polyrabbit/token-insight/model"
)

// Model is fitted once on an ascending series, then asked for predictions
// at arbitrary timestamps.
type Model interface {
	Name() string
	Fit(history []model.PricePoint) error
	Predict(timeline []time.Time) ([]model.PricePoint, error)
}

// FitError reports a series the model cannot learn from, such as one that
// is too short or spans no time.
type FitError struct {
	Model string
	Err   error
}

func (e *FitError) Error() string {
	return e.Model + " model: " + e.Err.Error()
}

func (e *FitError) Unwrap() error {
	return e.Err
}

var errNotFitted = errors.New("model is not fitted")

// Timeline returns every history timestamp followed by horizon more, each
// step apart from the previous one.
func Timeline(history []model.PricePoint, horizon int, step time.Duration) []time.Time {
	timeline := make([]time.Time, 0, len(history)+horizon)
	timeline = append(timeline, model.Times(history)...)
	if len(history) == 0 {
		return timeline
	}
	last := history[len(history)-1].Time
	for k := 1; k <= horizon; k++ {
		timeline = append(timeline, last.Add(time.Duration(k)*step))
	}
	return timeline
}

// Forecast fits m on history and predicts the history range plus horizon
// steps of the given frequency.
func Forecast(m Model, history []model.PricePoint, horizon int, step time.Duration) ([]model.PricePoint, error) {
	if horizon < 0 {
		return nil, errors.Errorf("horizon must not be negative, got %d", horizon)
	}
	if step <= 0 {
		return nil, errors.Errorf("frequency must be positive, got %s", step)
	}
	if err := m.Fit(history); err != nil {
		return nil, err
	}
	return m.Predict(Timeline(history, horizon, step))
}

func checkHistory(name string, history []model.PricePoint) error {
	if len(history) < 2 {
		return &FitError{Model: name, Err: errors.Errorf("need at least 2 samples, got %d", len(history))}
	}
	for i := 1; i < len(history); i++ {
		if history[i].Time.Before(history[i-1].Time) {
			return &FitError{Model: name, Err: errors.Errorf("samples are not ascending at #%d", i+1)}
		}
	}
	if !history[len(history)-1].Time.After(history[0].Time) {
		return &FitError{Model: name, Err: errors.New("samples span no time")}
	}
	return nil
}
