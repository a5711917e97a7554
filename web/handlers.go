package web

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/polyrabbit/token-insight/config"
	"github.com/polyrabbit/token-insight/insight"
	"github.com/polyrabbit/token-insight/model"
)

// trace is one Plotly series
type trace struct {
	X    []string  `json:"x"`
	Y    []float64 `json:"y"`
	Name string    `json:"name"`
	Mode string    `json:"mode"`
	Type string    `json:"type"`
}

func traceOf(name, mode string, points []model.PricePoint) trace {
	t := trace{
		X:    make([]string, len(points)),
		Y:    model.Prices(points),
		Name: name,
		Mode: mode,
		Type: "scatter",
	}
	for i, p := range points {
		t.X[i] = p.Stamp()
	}
	return t
}

// chartTraces overlays the predicted line on the actual samples.
func chartTraces(r *insight.Report) []trace {
	return []trace{
		traceOf("Predicted Price", "lines", r.Forecast),
		traceOf("Actual Price", "markers", r.History),
	}
}

type pageData struct {
	Timeframes []string
	Timeframe  string
	Report     *insight.Report
	Stages     []insight.Stage
	Traces     []trace
	Error      string
	NotFound   bool
}

func (s *Server) newPage(timeframe string) *pageData {
	timeframes := s.insighter.Timeframes()
	if _, ok := timeframes.Lookup(timeframe); !ok {
		timeframe = s.opts.DefaultTimeframe
	}
	return &pageData{Timeframes: timeframes.Labels(), Timeframe: timeframe}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	// Render into a buffer so a template error never yields half a page
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		logrus.WithField("request_id", requestID(r.Context())).WithError(err).Error("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.newPage(r.URL.Query().Get("timeframe")))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := s.newPage("")
		data.Error = "Malformed form submission."
		s.render(w, r, http.StatusBadRequest, data)
		return
	}
	req := insight.Request{Symbol: r.PostForm.Get("symbol"), Timeframe: r.PostForm.Get("timeframe")}
	// The form is cleared on submit, only the timeframe choice sticks
	data := s.newPage(req.Timeframe)

	progress := func(stage insight.Stage) {
		if stage.Done() {
			data.Stages = append(data.Stages, stage)
		}
	}
	report, err := s.insighter.Run(r.Context(), req, progress)
	if err != nil {
		data.Error = insight.Message(err)
		data.NotFound = insight.Classify(err) == insight.KindNotFound
		s.render(w, r, statusOf(err), data)
		return
	}
	data.Report = report
	data.Traces = chartTraces(report)
	s.render(w, r, http.StatusOK, data)
}

func (s *Server) handleAPIInsight(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := insight.Request{Symbol: query.Get("symbol"), Timeframe: query.Get("timeframe")}
	if req.Timeframe == "" {
		req.Timeframe = s.opts.DefaultTimeframe
	}
	report, err := s.insighter.Run(r.Context(), req, nil)
	if err != nil {
		writeJSON(w, statusOf(err), map[string]string{
			"error": insight.Message(err),
			"kind":  insight.Classify(err).String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	timeframes := s.insighter.Timeframes()
	if timeframes == nil {
		timeframes = config.Timeframes{}
	}
	writeJSON(w, http.StatusOK, timeframes)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusOf(err error) int {
	switch insight.Classify(err) {
	case insight.KindBadInput:
		return http.StatusBadRequest
	case insight.KindNotFound:
		return http.StatusNotFound
	case insight.KindUpstream:
		return http.StatusBadGateway
	case insight.KindForecast:
		return http.StatusUnprocessableEntity
	case insight.KindCanceled:
		return http.StatusRequestTimeout
	case insight.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode JSON response")
	}
}
