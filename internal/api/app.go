// Package api exposes the read-only reporting surface: registry
// snapshots, the dependency matrix, the rendered report, metrics, and a
// live event stream.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deptrack/deptrack/internal/config"
	"github.com/deptrack/deptrack/internal/metrics"
	"github.com/deptrack/deptrack/internal/report"
	"github.com/deptrack/deptrack/internal/session"
)

type App struct {
	cfg  *config.Config
	sess *session.Session
}

func NewApp(cfg *config.Config, sess *session.Session) *App {
	return &App{cfg: cfg, sess: sess}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	if a.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, a.cfg.Metrics.Path, a.sess.Metrics().Handler(metrics.HandlerOptions{
			TrackedDescriptors: a.sess.Engine().TrackedDescriptors,
			DroppedEvents:      a.sess.Broker().DroppedCount,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", a.listSources)
		r.Get("/sinks", a.listSinks)
		r.Get("/matrix", a.getMatrix)
		r.Get("/report", a.getReport)
		r.Get("/events", a.streamEvents)
	})

	return r
}

func (a *App) listSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Registry().SourceStats())
}

func (a *App) listSinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Registry().SinkStats())
}

func (a *App) getMatrix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": a.sess.ID,
		"sources":    a.sess.Registry().SourceStats(),
		"sinks":      a.sess.Registry().SinkStats(),
	})
}

func (a *App) getReport(w http.ResponseWriter, r *http.Request) {
	rep := a.sess.Report()
	switch r.URL.Query().Get("format") {
	case "markdown":
		writeText(w, http.StatusOK, report.FormatMarkdown(rep))
	case "text":
		writeText(w, http.StatusOK, report.FormatText(rep))
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
