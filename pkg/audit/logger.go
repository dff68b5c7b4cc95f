// Package audit writes the operator-facing audit trail: every transition
// decision and retirement milestone as one structured JSON line. The trail
// complements the hash-chained event ledger; this is the greppable view,
// the ledger is the tamper-evident one.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/contracts"
)

// EventType categorizes audit entries.
type EventType string

const (
	EventTransition EventType = "TRANSITION"
	EventRetirement EventType = "RETIREMENT"
	EventGovernance EventType = "GOVERNANCE"
	EventSystem     EventType = "SYSTEM"
)

// Entry is one structured audit record.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Type       EventType      `json:"type"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id"`
	Outcome    string         `json:"outcome"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Logger records audit entries.
type Logger interface {
	Record(ctx context.Context, actorID string, eventType EventType, action, resourceID, outcome string, metadata map[string]any) error
}

type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger writes to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter injects the sink, for tests and custom shipping.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(_ context.Context, actorID string, eventType EventType, action, resourceID, outcome string, metadata map[string]any) error {
	if actorID == "" {
		actorID = "system"
	}
	entry := Entry{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Type:       eventType,
		Action:     action,
		ResourceID: resourceID,
		Outcome:    outcome,
		Timestamp:  l.clock(),
		Metadata:   metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(line, '\n')...))
	return err
}

// RecordDecision is the transition-engine shorthand.
func RecordDecision(ctx context.Context, l Logger, callerID string, req contracts.TransitionRequest, res contracts.TransitionResult) error {
	outcome := "approved"
	meta := map[string]any{}
	if !res.Accepted {
		outcome = "rejected"
		meta["code"] = string(res.Code)
		meta["reasons"] = res.Reasons
	}
	if res.Degraded {
		meta["degraded"] = true
	}
	if len(meta) == 0 {
		meta = nil
	}
	return l.Record(ctx, callerID, EventTransition, string(req.Action), req.Resource.ID, outcome, meta)
}
