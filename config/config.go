package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Will be set by go-build
var (
	Version string
	Rev     string
)

// Flags whose names differ from their config keys
var flagKeys = map[string]string{
	"base-url":   "base_url",
	"rate-limit": "rate_limit",
	"rate-burst": "rate_burst",
}

func init() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 20)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("timeframe", DefaultTimeframe)
	v.SetDefault("horizon", 1)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_burst", 5)
}

func Parse() *Config {
	// Set log format
	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	}
	logrus.SetFormatter(formatter)
	logrus.SetOutput(colorable.NewColorableStderr()) // For Windows

	showVersion := pflag.BoolP("version", "v", false, "Show version number")
	showHelp := pflag.BoolP("help", "h", false, "Show usage message")
	pflag.CommandLine.MarkHidden("help")
	pflag.BoolP("debug", "d", false, "Enable debug mode")
	pflag.BoolP("list-timeframes", "l", false, "List supported timeframes")
	pflag.Bool("list-models", false, "List supported forecasting models")
	pflag.BoolP("serve", "S", false, "Serve the web page instead of printing to the terminal")
	pflag.String("listen", DefaultListen, "Address the web page listens on")
	pflag.StringP("timeframe", "f", DefaultTimeframe, "Forecast timeframe, see --list-timeframes")
	pflag.Int("horizon", 1, "Number of periods to predict beyond the history")
	pflag.StringP("model", "m", DefaultModel, "Forecasting model, see --list-models")
	pflag.String("schedule", "", "Re-run on a cron schedule (eg. \"@every 10m\", \"0 */5 * * * *\"), terminal mode only")

	var configFile string
	pflag.StringVarP(&configFile, "config-file", "c", "", `Config file path, use "--example-config-file <path>" `+
		"to generate an example config file,\n"+
		"by default token-insight uses \"token_insight.yml\" in current directory or $HOME as config file")
	var exampleConfigFile string
	pflag.StringVar(&exampleConfigFile, "example-config-file", "",
		"Generate example config file to the specified file path, by default it outputs to stdout")
	pflag.Lookup("example-config-file").NoOptDefVal = "-"

	pflag.String("base-url", DefaultBaseURL, "Base URL of the CoinGecko compatible market-data API")
	pflag.StringP("proxy", "p", "", "Proxy used when sending HTTP request \n(eg. "+
		"\"http://localhost:7777\", \"https://localhost:7777\", \"socks5://localhost:1080\")")
	pflag.IntP("timeout", "t", 20, "HTTP request timeout in seconds")
	pflag.Float64("rate-limit", 2, "Requests per second allowed per web client, 0 disables limiting")
	pflag.Int("rate-burst", 5, "Burst size of the per web client rate limit")
	pflag.CommandLine.SortFlags = false
	pflag.Usage = showUsageAndExit
	pflag.Parse()

	if *showHelp {
		showUsageAndExit()
	}

	if *showVersion {
		fmt.Fprintf(os.Stderr, "Version %s", Version)
		if Rev != "" {
			fmt.Fprintf(os.Stderr, ", build %s", Rev)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(0)
	}

	if exampleConfigFile != "" {
		writeExampleConfig(exampleConfigFile)
		os.Exit(0)
	}

	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Error reading .env file: %v", err)
	}

	bindFlags(viper.GetViper(), pflag.CommandLine)
	viper.SetEnvPrefix("TOKEN_INSIGHT")
	viper.AutomaticEnv()
	// Set configure file
	viper.SetConfigName("token_insight") // name of config file (without extension)
	viper.AddConfigPath(".")             // path to look for the config file in
	viper.AddConfigPath("$HOME")         // optionally look for config in the HOME directory
	viper.AddConfigPath("/etc")          // and /etc
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			logrus.Debugln("No config file found, using flags and defaults")
		default:
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	cfg, err := Load(viper.GetViper())
	if err != nil {
		logrus.Fatalf("Invalid configuration %q, error: %s\n", viper.ConfigFileUsed(), err)
	}
	cfg.Symbols = pflag.Args()
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Debugln("Using config file:", viper.ConfigFileUsed())
	return cfg
}

// Load decodes and validates a config from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if mapped, ok := flagKeys[key]; ok {
			key = mapped
		}
		if err := v.BindPFlag(key, f); err != nil {
			logrus.Debugf("Failed to bind flag %s: %v", f.Name, err)
		}
	})
}

func showUsageAndExit() {
	// Print usage message and exit
	fmt.Fprintf(os.Stderr, "\nUsage: %s [Options] [Symbol1 Symbol2 ...]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "\nForecast token prices from CoinGecko market data, in the terminal or on a web page")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	pflag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nSymbols:")
	fmt.Fprintln(os.Stderr, "  Ticker symbols to look up, case-insensitive (eg. \"btc ETH\"). "+
		"Without symbols, use --serve to start the web page.")
	os.Exit(0)
}

// ExampleConfig renders the default configuration as YAML.
func ExampleConfig() ([]byte, error) {
	cfg := Config{
		Timeout:    20,
		BaseURL:    DefaultBaseURL,
		Listen:     DefaultListen,
		Timeframe:  DefaultTimeframe,
		Horizon:    1,
		Model:      DefaultModel,
		RateLimit:  2,
		RateBurst:  5,
		Timeframes: DefaultTimeframes(),
	}
	var b strings.Builder
	b.WriteString("# token-insight example config, every key is optional\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeExampleConfig(fpath string) {
	exampleConfig, err := ExampleConfig()
	if err != nil {
		logrus.Fatalf("Failed to render example config: %v", err)
	}
	fout := os.Stdout
	if fpath != "-" {
		if _, err := os.Stat(fpath); err == nil {
			logrus.Warnf("%s already exists, skipping", fpath)
			return
		}
		if fout, err = os.Create(fpath); err != nil {
			logrus.Errorf("Failed to create config file %s, error: %v", fpath, err)
			return
		}
		defer fout.Close()
	}
	if _, err := fout.Write(exampleConfig); err != nil {
		logrus.Errorf("Failed to write config file %s, error: %v", fpath, err)
	} else if fout != os.Stdout {
		logrus.Infof("Write example config file to %s", fpath)
	}
}

func ListAndExit(title string, names []string) {
	fmt.Fprintln(os.Stderr, title)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, " %s\n", name)
	}
	os.Exit(0)
}
