package store

import (
	"context"

	"github.com/deptrack/deptrack/pkg/types"
)

// EventStore persists attribution events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev types.Event) error
	QueryEvents(ctx context.Context, q types.EventQuery) ([]types.Event, error)
	Close() error
}

// MatrixStore persists the final dependency matrix at teardown.
type MatrixStore interface {
	SaveMatrix(ctx context.Context, sessionID string, sources []types.SourceStats, sinks []types.SinkStats) error
	LoadMatrix(ctx context.Context, sessionID string) (sources []types.SourceStats, sinks []types.SinkStats, err error)
	Sessions(ctx context.Context) ([]string, error)
}
