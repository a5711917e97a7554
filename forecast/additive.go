package forecast

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/polyrabbit/token-insight/model"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Gregorian average, in seconds
const yearSeconds = 365.25 * 24 * 3600

// seasonality is a periodic component expressed as order pairs of
// sine/cosine terms.
type seasonality struct {
	name   string
	period float64 // seconds
	order  int
}

// additiveModel fits price = intercept + slope*t + seasonal terms by least
// squares, t being time scaled so the history spans [0, 1].
type additiveModel struct {
	origin  time.Time
	span    float64
	seasons []seasonality
	coef    []float64
}

func (m *additiveModel) Name() string {
	return "additive"
}

// seasonalitiesFor enables a component only when the history covers at
// least two of its cycles and is sampled finer than the cycle.
func seasonalitiesFor(history []model.PricePoint) []seasonality {
	span := history[len(history)-1].Time.Sub(history[0].Time)
	minGap := span
	for i := 1; i < len(history); i++ {
		if gap := history[i].Time.Sub(history[i-1].Time); gap > 0 && gap < minGap {
			minGap = gap
		}
	}
	var seasons []seasonality
	if span >= 2*day && minGap < day {
		seasons = append(seasons, seasonality{name: "daily", period: day.Seconds(), order: 4})
	}
	if span >= 2*week && minGap < week {
		seasons = append(seasons, seasonality{name: "weekly", period: week.Seconds(), order: 3})
	}
	if span.Seconds() >= 2*yearSeconds {
		seasons = append(seasons, seasonality{name: "yearly", period: yearSeconds, order: 10})
	}
	return seasons
}

func (m *additiveModel) columns() int {
	cols := 2
	for _, s := range m.seasons {
		cols += 2 * s.order
	}
	return cols
}

// row writes the regressors of t into dst, which must have columns() room.
func (m *additiveModel) row(t time.Time, dst []float64) {
	dst[0] = 1
	dst[1] = t.Sub(m.origin).Seconds() / m.span
	col := 2
	abs := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	for _, s := range m.seasons {
		phase := 2 * math.Pi * math.Mod(abs, s.period) / s.period
		for k := 1; k <= s.order; k++ {
			dst[col] = math.Sin(float64(k) * phase)
			dst[col+1] = math.Cos(float64(k) * phase)
			col += 2
		}
	}
}

func (m *additiveModel) Fit(history []model.PricePoint) error {
	if err := checkHistory(m.Name(), history); err != nil {
		return err
	}
	m.coef = nil
	m.origin = history[0].Time
	m.span = history[len(history)-1].Time.Sub(m.origin).Seconds()
	m.seasons = seasonalitiesFor(history)
	// Keep more samples than unknowns, dropping the longest cycles first
	for len(m.seasons) > 0 && len(history) <= m.columns() {
		m.seasons = m.seasons[:len(m.seasons)-1]
	}

	cols := m.columns()
	design := mat.NewDense(len(history), cols, nil)
	for i, p := range history {
		m.row(p.Time, design.RawRowView(i))
	}
	observed := mat.NewVecDense(len(history), model.Prices(history))

	var coef mat.VecDense
	if err := coef.SolveVec(design, observed); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return &FitError{Model: m.Name(), Err: errors.Wrap(err, "solve least squares")}
		}
		logrus.Debugf("%s model - ill-conditioned design, condition number %g", m.Name(), float64(cond))
	}
	m.coef = make([]float64, cols)
	copy(m.coef, coef.RawVector().Data)
	if floats.HasNaN(m.coef) {
		return &FitError{Model: m.Name(), Err: errors.New("least squares produced NaN")}
	}

	names := make([]string, len(m.seasons))
	for i, s := range m.seasons {
		names[i] = s.name
	}
	logrus.WithField("seasonalities", names).Debugf("%s model - fitted %d samples", m.Name(), len(history))
	return nil
}

func (m *additiveModel) Predict(timeline []time.Time) ([]model.PricePoint, error) {
	if m.coef == nil {
		return nil, errNotFitted
	}
	regressors := make([]float64, len(m.coef))
	predicted := make([]model.PricePoint, len(timeline))
	for i, t := range timeline {
		m.row(t, regressors)
		predicted[i] = model.PricePoint{Time: t, Price: floats.Dot(regressors, m.coef)}
	}
	return predicted, nil
}

func init() {
	Register("additive", func() Model { return new(additiveModel) })
}
