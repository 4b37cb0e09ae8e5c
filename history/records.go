package history

import (
	"encoding/json"
	"time"
)

// RecordKindTransfer discriminates transfer records in the dataset.
const RecordKindTransfer = "transfer"

// Record is one finished transfer.
type Record struct {
	TransferID  string    `json:"transfer_id" yaml:"transfer_id"`
	Operation   string    `json:"operation" yaml:"operation"`
	CanisterID  string    `json:"canister_id" yaml:"canister_id"`
	SnapshotID  string    `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	Backend     string    `json:"backend,omitempty" yaml:"backend,omitempty"`
	Outcome     string    `json:"outcome" yaml:"outcome"`
	ErrorKind   string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Folder      string    `json:"folder,omitempty" yaml:"folder,omitempty"`
	Artifacts   int       `json:"artifacts" yaml:"artifacts"`
	TotalBytes  uint64    `json:"total_bytes" yaml:"total_bytes"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`
	Chunks      int64     `json:"chunks" yaml:"chunks"`
	Retries     int64     `json:"retries" yaml:"retries"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// DeriveDay computes the day partition: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// toMap converts rec to the map form Lode's Hive layout requires.
func (rec Record) toMap() map[string]any {
	completed := rec.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	m := map[string]any{
		"record_kind":  RecordKindTransfer,
		"transfer_id":  rec.TransferID,
		"operation":    rec.Operation,
		"canister":     rec.CanisterID,
		"outcome":      rec.Outcome,
		"artifacts":    rec.Artifacts,
		"total_bytes":  rec.TotalBytes,
		"duration_ms":  rec.DurationMs,
		"chunks":       rec.Chunks,
		"retries":      rec.Retries,
		"completed_at": completed.UTC().Format(time.RFC3339Nano),
		"day":          DeriveDay(completed),
	}
	if rec.SnapshotID != "" {
		m["snapshot_id"] = rec.SnapshotID
	}
	if rec.Backend != "" {
		m["backend"] = rec.Backend
	}
	if rec.ErrorKind != "" {
		m["error_kind"] = rec.ErrorKind
	}
	if rec.Folder != "" {
		m["folder"] = rec.Folder
	}
	return m
}

// recordFromMap decodes a stored record. Missing or mistyped fields are
// left zero.
func recordFromMap(m map[string]any) Record {
	rec := Record{
		TransferID: toString(m["transfer_id"]),
		Operation:  toString(m["operation"]),
		CanisterID: toString(m["canister"]),
		SnapshotID: toString(m["snapshot_id"]),
		Backend:    toString(m["backend"]),
		Outcome:    toString(m["outcome"]),
		ErrorKind:  toString(m["error_kind"]),
		Folder:     toString(m["folder"]),
		Artifacts:  int(toInt64(m["artifacts"])),
		TotalBytes: uint64(toInt64(m["total_bytes"])),
		DurationMs: toInt64(m["duration_ms"]),
		Chunks:     toInt64(m["chunks"]),
		Retries:    toInt64(m["retries"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, toString(m["completed_at"])); err == nil {
		rec.CompletedAt = ts
	}
	return rec
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric forms a codec may hand back.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
