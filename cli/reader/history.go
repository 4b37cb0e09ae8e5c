package reader

import (
	"context"
	"time"

	"github.com/pithecene-io/canisnap/history"
)

// HistoryEntryView is one row of the transfer journal.
type HistoryEntryView struct {
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
	Operation   string    `json:"operation" yaml:"operation"`
	CanisterID  string    `json:"canister_id" yaml:"canister_id"`
	SnapshotID  string    `json:"snapshot_id" yaml:"snapshot_id"`
	Outcome     string    `json:"outcome" yaml:"outcome"`
	ErrorKind   string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Artifacts   int       `json:"artifacts" yaml:"artifacts"`
	TotalBytes  uint64    `json:"total_bytes" yaml:"total_bytes"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`
	Retries     int64     `json:"retries" yaml:"retries"`
	TransferID  string    `json:"transfer_id" yaml:"transfer_id"`
}

// ListHistory reads up to limit journal entries from dir, newest first.
func ListHistory(ctx context.Context, dir string, f history.Filter, limit int) ([]HistoryEntryView, error) {
	j, err := history.OpenFS(dir)
	if err != nil {
		return nil, err
	}
	recs, err := j.List(ctx, f, limit)
	if err != nil {
		return nil, err
	}

	views := make([]HistoryEntryView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, NewHistoryEntryView(rec))
	}
	return views, nil
}

// NewHistoryEntryView converts a journal record.
func NewHistoryEntryView(rec history.Record) HistoryEntryView {
	return HistoryEntryView{
		CompletedAt: rec.CompletedAt,
		Operation:   rec.Operation,
		CanisterID:  rec.CanisterID,
		SnapshotID:  rec.SnapshotID,
		Outcome:     rec.Outcome,
		ErrorKind:   rec.ErrorKind,
		Artifacts:   rec.Artifacts,
		TotalBytes:  rec.TotalBytes,
		DurationMs:  rec.DurationMs,
		Retries:     rec.Retries,
		TransferID:  rec.TransferID,
	}
}
