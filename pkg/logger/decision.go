package logger

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"
)

// TokenLogInfo is the per-token breakdown recorded on a DecisionRecord.
type TokenLogInfo struct {
	Kind    string `json:"kind"`
	Issuer  string `json:"issuer,omitempty"`
	Subject string `json:"subject,omitempty"`
	JTI     string `json:"jti,omitempty"`
}

// ViewLogEntry is one principal view's outcome as recorded in the log.
type ViewLogEntry struct {
	Decision       string   `json:"decision"`
	ReasonPolicyID []string `json:"reason_policy_ids,omitempty"`
	ErrorPolicyID  []string `json:"error_policy_ids,omitempty"`
}

// DecisionRecord is the structured entry emitted once per authorize() call.
type DecisionRecord struct {
	ID                 string         `json:"id"`
	PDPID              string         `json:"pdp_id"`
	ApplicationName    string         `json:"application_name,omitempty"`
	PolicyStoreID      string         `json:"policy_store_id"`
	PolicyStoreVersion string         `json:"policy_store_version,omitempty"`
	Action             string         `json:"action"`
	ResourceUID        string         `json:"resource_uid"`
	Decision           string         `json:"decision"`
	Workload           *ViewLogEntry  `json:"workload,omitempty"`
	User               *ViewLogEntry  `json:"user,omitempty"`
	ElapsedMs          float64        `json:"elapsed_ms"`
	Claims             map[string]any `json:"claims,omitempty"`
	Tokens             []TokenLogInfo `json:"tokens,omitempty"`
	Errors             []string       `json:"errors,omitempty"`
}

// Sink is the tagged-variant contract every log destination implements:
// Off discards, StdOut emits through the process logger, InMemory retains
// entries for later retrieval (e.g. by a CLI or test harness).
type Sink interface {
	Write(rec DecisionRecord)
}

// OffSink discards every record.
type OffSink struct{}

// Write implements Sink.
func (OffSink) Write(DecisionRecord) {}

// StdOutSink emits each record as a structured log line through the
// process-wide logger.
type StdOutSink struct{}

// Write implements Sink.
func (StdOutSink) Write(rec DecisionRecord) {
	Infow("authorize decision", "decision", rec)
}

// InMemorySink retains records in a bounded ring for later retrieval,
// e.g. by cmd/pdpctl or a test harness. A non-positive capacity means
// unbounded.
type InMemorySink struct {
	mu       sync.Mutex
	capacity int
	records  []DecisionRecord
}

// NewInMemorySink constructs an InMemorySink retaining up to capacity
// records (0 or negative means unbounded).
func NewInMemorySink(capacity int) *InMemorySink {
	return &InMemorySink{capacity: capacity}
}

// Write implements Sink.
func (s *InMemorySink) Write(rec DecisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.capacity > 0 && len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (s *InMemorySink) Records() []DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DecisionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// NewSink constructs the Sink named by logType ("off", "stdout", or
// "lock"), defaulting to Off for any unrecognized value.
func NewSink(logType string) Sink {
	switch logType {
	case "stdout":
		return StdOutSink{}
	case "lock":
		return NewInMemorySink(0)
	default:
		return OffSink{}
	}
}

// ProjectClaims walks entityJSON (the Cedar JSON form of one entity) and
// extracts only the attribute paths listed in paths, keyed by path.
// Missing paths are omitted silently, matching the projection contract.
func ProjectClaims(entityJSON []byte, paths []string) map[string]any {
	if len(paths) == 0 {
		return nil
	}
	out := map[string]any{}
	for _, p := range paths {
		res := gjson.GetBytes(entityJSON, p)
		if !res.Exists() {
			continue
		}
		out[p] = res.Value()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MarshalRecord renders a DecisionRecord as JSON, for sinks or callers
// that need the wire form directly.
func MarshalRecord(rec DecisionRecord) ([]byte, error) {
	return json.Marshal(rec)
}
