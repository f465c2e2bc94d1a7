// Package session wires the registry, taint tracker, attribution
// engine, stores and broker into one explicitly constructed object with
// no ambient global state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/deptrack/deptrack/internal/config"
	"github.com/deptrack/deptrack/internal/events"
	"github.com/deptrack/deptrack/internal/metrics"
	"github.com/deptrack/deptrack/internal/report"
	"github.com/deptrack/deptrack/internal/store"
	"github.com/deptrack/deptrack/internal/store/jsonl"
	"github.com/deptrack/deptrack/internal/store/sqlite"
	"github.com/deptrack/deptrack/internal/target"
	"github.com/deptrack/deptrack/internal/taint"
	"github.com/deptrack/deptrack/internal/tracker"
	"github.com/deptrack/deptrack/internal/trace"
	"github.com/deptrack/deptrack/pkg/types"
)

// Session owns everything needed to attribute one monitored execution.
type Session struct {
	ID string

	cfg      *config.Config
	log      *slog.Logger
	registry *target.Registry
	shadow   *taint.ShadowMap
	engine   *tracker.Engine
	broker   *events.Broker
	factory  *events.Factory
	metrics  *metrics.Collector

	eventStores []store.EventStore
	matrix      store.MatrixStore

	eventsSeen int64
}

// New builds a session from config. Invalid targets are fatal here:
// the registry refuses them and startup stops.
func New(cfg *config.Config, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	registry := target.NewRegistry()
	for _, spec := range cfg.Targets.Sources {
		idx, err := registry.AddSource(spec.Target())
		if err != nil {
			return nil, err
		}
		log.Info("registered source", "index", idx, "target", spec.Target().String())
	}
	for _, spec := range cfg.Targets.Sinks {
		idx, err := registry.AddSink(spec.Target())
		if err != nil {
			return nil, err
		}
		log.Info("registered sink", "index", idx, "target", spec.Target().String())
	}

	filter, err := tracker.NewProcessFilter(cfg.Targets.Processes)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		log:      log,
		registry: registry,
		shadow:   taint.NewShadowMap(),
		broker:   events.NewBroker(),
		metrics:  metrics.New(),
	}
	s.factory = events.NewFactory(s.ID)

	if cfg.Taint.Enabled && cfg.Taint.EnableAtEvent == 0 {
		s.shadow.Enable()
	}

	if cfg.Storage.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.eventStores = append(s.eventStores, db)
		s.matrix = db
	}
	if cfg.Storage.JSONL.Path != "" {
		js, err := jsonl.New(cfg.Storage.JSONL.Path, cfg.Storage.JSONL.MaxSizeMB, cfg.Storage.JSONL.MaxBackups)
		if err != nil {
			return nil, err
		}
		s.eventStores = append(s.eventStores, js)
	}

	s.engine = tracker.New(tracker.Options{
		Registry:      registry,
		Taint:         s.shadow,
		Metrics:       s.metrics,
		Logger:        log,
		Factory:       s.factory,
		Publisher:     s,
		ProcessFilter: filter,
	})
	return s, nil
}

// Publish fans an event out to the broker and every configured store.
// Store failures are logged, not fatal: the in-memory matrix is the
// source of truth during the run.
func (s *Session) Publish(ev types.Event) {
	s.broker.Publish(ev)
	for _, st := range s.eventStores {
		if err := st.AppendEvent(context.Background(), ev); err != nil {
			s.log.Warn("append event failed", "type", ev.Type, "error", err)
		}
	}
}

// HandleEvent feeds one trace event through taint enablement and the
// classification state machine. Must be called from a single goroutine;
// events must arrive in program order.
func (s *Session) HandleEvent(ev types.TraceEvent) {
	s.eventsSeen++
	if s.cfg.Taint.Enabled && !s.shadow.Enabled() && s.eventsSeen >= s.cfg.Taint.EnableAtEvent {
		s.shadow.Enable()
		out := s.factory.New(types.EventTaintEnabled)
		out.Seq = ev.Seq
		s.Publish(out)
		s.log.Info("taint tracking enabled", "at_event", s.eventsSeen)
	}
	s.engine.HandleEvent(ev)
}

// Run replays a full trace through the session.
func (s *Session) Run(ctx context.Context, r *trace.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.HandleEvent(ev)
	}
}

// Report builds the attribution report from the live registry.
func (s *Session) Report() *report.Report {
	return report.Build(s.ID, s.registry.SourceStats(), s.registry.SinkStats())
}

// Registry exposes the endpoint registry for read-only reporting.
func (s *Session) Registry() *target.Registry { return s.registry }

// Broker exposes the event broker for live subscribers.
func (s *Session) Broker() *events.Broker { return s.broker }

// Metrics exposes the metrics collector.
func (s *Session) Metrics() *metrics.Collector { return s.metrics }

// Engine exposes the attribution engine.
func (s *Session) Engine() *tracker.Engine { return s.engine }

// Close persists the final matrix and shuts the stores down. The
// returned error aggregates everything that failed on the way out.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.matrix != nil {
		if err := s.matrix.SaveMatrix(ctx, s.ID, s.registry.SourceStats(), s.registry.SinkStats()); err != nil {
			errs = append(errs, fmt.Errorf("save matrix: %w", err))
		}
	}
	for _, st := range s.eventStores {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
