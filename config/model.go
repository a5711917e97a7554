package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultListen    = ":8501"
	DefaultTimeframe = "1 - Day"
	DefaultModel     = "additive"
)

// Timeframe maps a user-facing label to how much history is requested and
// at which frequency the forecast timeline is built.
type Timeframe struct {
	Label     string        `mapstructure:"label" yaml:"label" json:"label"`
	Days      int           `mapstructure:"days" yaml:"days" json:"days"`
	Frequency string        `mapstructure:"frequency" yaml:"frequency" json:"frequency"`
	Step      time.Duration `mapstructure:"-" yaml:"-" json:"step"`
}

// Timeframes is an ordered, read-only table. Lookups never mutate it, and
// Clone hands out copies so callers cannot alter a shared table.
type Timeframes []Timeframe

func DefaultTimeframes() Timeframes {
	table := Timeframes{
		{Label: "5 - Minutes", Days: 1, Frequency: "5T"},
		{Label: "15 - Minutes", Days: 1, Frequency: "15T"},
		{Label: "30 - Minutes", Days: 1, Frequency: "30T"},
		{Label: "1 - Hour", Days: 1, Frequency: "1H"},
		{Label: "6 - Hours", Days: 7, Frequency: "6H"},
		{Label: "12 - Hours", Days: 7, Frequency: "12H"},
		{Label: "1 - Day", Days: 14, Frequency: "1D"},
		{Label: "7 - Days", Days: 30, Frequency: "7D"},
		{Label: "1 - Month", Days: 365, Frequency: "30D"},
	}
	if err := table.normalize(); err != nil {
		panic(err)
	}
	return table
}

func (t Timeframes) Lookup(label string) (Timeframe, bool) {
	for _, tf := range t {
		if strings.EqualFold(tf.Label, strings.TrimSpace(label)) {
			return tf, true
		}
	}
	return Timeframe{}, false
}

func (t Timeframes) Labels() []string {
	labels := make([]string, len(t))
	for i, tf := range t {
		labels[i] = tf.Label
	}
	return labels
}

func (t Timeframes) Clone() Timeframes {
	return append(Timeframes(nil), t...)
}

func (t Timeframes) normalize() error {
	if len(t) == 0 {
		return errors.New("timeframe table is empty")
	}
	seen := make(map[string]bool, len(t))
	for i := range t {
		tf := &t[i]
		if tf.Label == "" {
			return errors.Errorf("timeframe #%d has no label", i+1)
		}
		key := strings.ToLower(tf.Label)
		if seen[key] {
			return errors.Errorf("duplicated timeframe %q", tf.Label)
		}
		seen[key] = true
		if tf.Days <= 0 {
			return errors.Errorf("timeframe %q: days must be positive, got %d", tf.Label, tf.Days)
		}
		step, err := ParseFrequency(tf.Frequency)
		if err != nil {
			return errors.Wrapf(err, "timeframe %q", tf.Label)
		}
		tf.Step = step
	}
	return nil
}

var frequencyPattern = regexp.MustCompile(`^(\d*)(MIN|T|S|H|D|W)$`)

// ParseFrequency understands pandas style offset aliases ("5T", "15min",
// "1H", "1D", "7D", "2W") as well as Go durations ("90m").
func ParseFrequency(code string) (time.Duration, error) {
	code = strings.TrimSpace(code)
	if m := frequencyPattern.FindStringSubmatch(strings.ToUpper(code)); m != nil {
		n := 1
		if m[1] != "" {
			var err error
			if n, err = strconv.Atoi(m[1]); err != nil {
				return 0, errors.Wrapf(err, "invalid frequency %q", code)
			}
		}
		var unit time.Duration
		switch m[2] {
		case "S":
			unit = time.Second
		case "T", "MIN":
			unit = time.Minute
		case "H":
			unit = time.Hour
		case "D":
			unit = 24 * time.Hour
		case "W":
			unit = 7 * 24 * time.Hour
		}
		if n <= 0 {
			return 0, errors.Errorf("invalid frequency %q: must be positive", code)
		}
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(code)
	if err != nil {
		return 0, errors.Errorf("invalid frequency %q", code)
	}
	if d <= 0 {
		return 0, errors.Errorf("invalid frequency %q: must be positive", code)
	}
	return d, nil
}

type Config struct {
	Debug      bool       `mapstructure:"debug" yaml:"debug"`
	Timeout    int        `mapstructure:"timeout" yaml:"timeout"`
	Proxy      string     `mapstructure:"proxy" yaml:"proxy"`
	BaseURL    string     `mapstructure:"base_url" yaml:"base_url"`
	Serve      bool       `mapstructure:"serve" yaml:"serve"`
	Listen     string     `mapstructure:"listen" yaml:"listen"`
	Timeframe  string     `mapstructure:"timeframe" yaml:"timeframe"`
	Horizon    int        `mapstructure:"horizon" yaml:"horizon"`
	Model      string     `mapstructure:"model" yaml:"model"`
	Schedule   string     `mapstructure:"schedule" yaml:"schedule"`
	RateLimit  float64    `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst  int        `mapstructure:"rate_burst" yaml:"rate_burst"`
	Timeframes Timeframes `mapstructure:"timeframes" yaml:"timeframes"`
	// Symbols come from positional command-line arguments
	Symbols []string `mapstructure:"-" yaml:"-"`
}

// Validate fills in the timeframe table and checks values that would
// otherwise only fail deep inside a request.
func (c *Config) Validate() error {
	if len(c.Timeframes) == 0 {
		c.Timeframes = DefaultTimeframes()
	} else if err := c.Timeframes.normalize(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.Horizon <= 0 {
		return errors.Errorf("horizon must be positive, got %d", c.Horizon)
	}
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, ok := c.Timeframes.Lookup(c.Timeframe); !ok {
		return errors.Errorf("unknown timeframe %q, choose one of %s",
			c.Timeframe, strings.Join(c.Timeframes.Labels(), ", "))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("rate_limit and rate_burst must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = 1
	}
	return nil
}
