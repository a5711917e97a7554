// Package web serves the prediction form, its result page and a JSON API.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/polyrabbit/token-insight/config"
	"github.com/polyrabbit/token-insight/insight"
)

//go:embed templates/*.html
var templateFS embed.FS

// Insighter runs one prediction per call.
type Insighter interface {
	Run(ctx context.Context, req insight.Request, progress insight.Progress) (*insight.Report, error)
	Timeframes() config.Timeframes
}

type Options struct {
	// Requests per second per client on the prediction routes, 0 disables
	RateLimit float64
	RateBurst int
	// Timeframe preselected in the form
	DefaultTimeframe string
}

type Server struct {
	insighter Insighter
	opts      Options
	router    *mux.Router
	page      *template.Template
	limiter   *rateLimiter
}

var templateFuncs = template.FuncMap{
	"usd":     formatUSD,
	"dollars": formatDollars,
	"percent": insight.FormatPercent,
	"lines":   splitLines,
}

func formatUSD(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 8)
}

func formatDollars(v *decimal.Decimal) string {
	if v == nil {
		return "n/a"
	}
	return "$" + humanize.BigComma(v.BigInt())
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func New(insighter Insighter, opts Options) (*Server, error) {
	page, err := template.New("index.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		insighter: insighter,
		opts:      opts,
		router:    mux.NewRouter(),
		page:      page,
	}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware, accessLogMiddleware)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.Handle("/", s.limit(http.HandlerFunc(s.handleSubmit))).Methods(http.MethodPost)
	s.router.Handle("/api/insight", s.limit(http.HandlerFunc(s.handleAPIInsight))).Methods(http.MethodGet)
	s.router.HandleFunc("/api/timeframes", s.handleTimeframes).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Handler(next)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Serving on http://%s", displayAddr(addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logrus.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != http.ErrServerClosed {
		return err
	}
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
