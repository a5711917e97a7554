package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/polyrabbit/token-insight/coingecko"
	"github.com/polyrabbit/token-insight/config"
	"github.com/polyrabbit/token-insight/forecast"
	"github.com/polyrabbit/token-insight/http"
	"github.com/polyrabbit/token-insight/insight"
	"github.com/polyrabbit/token-insight/web"
	"github.com/polyrabbit/token-insight/writer"
)

// Accepts both 5-field and 6-field (with seconds) specs, plus @every/@hourly
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func main() {
	cfg := config.Parse()

	if viper.GetBool("list-timeframes") {
		var lines []string
		for _, tf := range cfg.Timeframes {
			lines = append(lines, fmt.Sprintf("%-14s %3d days of history, predicted every %s", tf.Label, tf.Days, tf.Step))
		}
		config.ListAndExit("Supported timeframes:", lines)
	}
	if viper.GetBool("list-models") {
		config.ListAndExit("Supported models:", forecast.Names())
	}

	source, err := coingecko.NewClient(cfg.BaseURL, http.New(cfg))
	if err != nil {
		logrus.Fatalln(err)
	}
	service, err := insight.NewService(source, cfg.Timeframes, cfg.Horizon, cfg.Model)
	if err != nil {
		logrus.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Serve {
		server, err := web.New(service, web.Options{
			RateLimit:        cfg.RateLimit,
			RateBurst:        cfg.RateBurst,
			DefaultTimeframe: cfg.Timeframe,
		})
		if err != nil {
			logrus.Fatalf("Failed to set up web server: %v", err)
		}
		if err := server.ListenAndServe(ctx, cfg.Listen); err != nil {
			logrus.Fatalf("Web server stopped: %v", err)
		}
		return
	}

	if len(cfg.Symbols) == 0 {
		logrus.Fatalln("No token symbol given, pass some symbols (eg. \"btc eth\") or use --serve")
	}

	tw := writer.NewTableWriter(colorable.NewColorableStdout()) // For Windows
	logrus.SetOutput(tw.Bypass())
	defer logrus.SetOutput(colorable.NewColorableStderr())

	runOnce := func() {
		results := make([]writer.Result, 0, len(cfg.Symbols))
		// One symbol after another, each run is independent
		for _, symbol := range cfg.Symbols {
			report, err := service.Run(ctx, insight.Request{Symbol: symbol, Timeframe: cfg.Timeframe}, tw.Progress(symbol))
			results = append(results, writer.Result{Symbol: symbol, Report: report, Err: err})
		}
		tw.Render(results)
	}

	var scheduler *cron.Cron
	if cfg.Schedule != "" {
		// Fail on a bad spec before the first run
		if scheduler, err = newScheduler(cfg.Schedule, runOnce); err != nil {
			logrus.Fatalln(err)
		}
	}

	runOnce()
	if scheduler == nil {
		return
	}
	logrus.Infof("Re-running on schedule %q, press Ctrl+C to stop", cfg.Schedule)
	runScheduled(ctx, scheduler)
}

// newScheduler registers job on spec. A run that is due while the previous
// one is still going is skipped.
func newScheduler(spec string, job func()) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger()))),
	)
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", spec)
	}
	return c, nil
}

// runScheduled blocks until ctx is done, then waits for a running job.
func runScheduled(ctx context.Context, c *cron.Cron) {
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}
