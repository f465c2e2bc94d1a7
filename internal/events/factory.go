package events

import (
	"sync/atomic"
	"time"

	"github.com/deptrack/deptrack/pkg/types"
	"github.com/google/uuid"
)

// Factory creates attribution events with pre-populated base fields for
// one session.
type Factory struct {
	sessionID string
	sequence  int64
}

// NewFactory creates a factory for a session.
func NewFactory(sessionID string) *Factory {
	return &Factory{sessionID: sessionID}
}

// New returns an event with identity, timestamp and sequence filled in.
func (f *Factory) New(eventType string) types.Event {
	return types.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		SessionID: f.sessionID,
		Seq:       atomic.AddInt64(&f.sequence, 1),
	}
}
