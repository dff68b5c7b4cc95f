package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonshold/core/pkg/audit"
	"github.com/commonshold/core/pkg/contracts"
)

func parseEntry(t *testing.T, buf *bytes.Buffer) audit.Entry {
	t.Helper()
	output := buf.String()
	require.True(t, strings.HasPrefix(output, "AUDIT: "), "output: %q", output)
	var entry audit.Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(output), "AUDIT: ")), &entry))
	return entry
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), "alice", audit.EventGovernance,
		"register_spec", "spec-drill", "ok", map[string]any{"version": "1.1.0"})
	require.NoError(t, err)

	entry := parseEntry(t, &buf)
	assert.Equal(t, "alice", entry.ActorID)
	assert.Equal(t, audit.EventGovernance, entry.Type)
	assert.Equal(t, "register_spec", entry.Action)
	assert.Equal(t, "ok", entry.Outcome)
	assert.Equal(t, "1.1.0", entry.Metadata["version"])
	assert.Len(t, entry.ID, 36)
}

func TestLoggerDefaultsActorToSystem(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	require.NoError(t, logger.Record(context.Background(), "", audit.EventSystem,
		"startup", "", "ok", nil))
	assert.Equal(t, "system", parseEntry(t, &buf).ActorID)
}

func TestRecordDecisionCapturesRejection(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	req := contracts.TransitionRequest{
		Action:   contracts.ActionModify,
		Resource: contracts.Resource{ID: "res-1"},
		AgentID:  "carol",
	}
	res := contracts.TransitionResult{
		Code:    contracts.RejectPermissionDenied,
		Reasons: []string{"Insufficient role: requires one of [Repair]"},
	}
	require.NoError(t, audit.RecordDecision(context.Background(), logger, "carol", req, res))

	entry := parseEntry(t, &buf)
	assert.Equal(t, audit.EventTransition, entry.Type)
	assert.Equal(t, "rejected", entry.Outcome)
	assert.Equal(t, string(contracts.RejectPermissionDenied), entry.Metadata["code"])
}
