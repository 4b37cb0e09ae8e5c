// Package history keeps a journal of finished transfers in a Lode dataset.
//
// Every download and upload appends one record. Records are partitioned by
// canister, operation and UTC day using Lode's Hive layout, and encoded as
// JSON lines. The journal is append only; queries walk snapshots newest
// first.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// DatasetID is the Lode dataset holding transfer records.
const DatasetID = "canisnap-transfers"

// ErrNoRecords is returned when no record matches a query.
var ErrNoRecords = errors.New("no transfer records found")

// Journal appends and queries transfer records.
type Journal struct {
	dataset lode.Dataset
}

// Open creates a journal over the store produced by factory.
// Use lode.NewMemoryFactory() or a shared lode.NewMemory() in tests.
func Open(factory lode.StoreFactory) (*Journal, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(DatasetID),
		factory,
		lode.WithHiveLayout("canister", "operation", "day"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, DatasetID)
	}
	return &Journal{dataset: ds}, nil
}

// OpenFS creates a journal rooted at dir, creating dir if needed.
func OpenFS(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapInitError(err, dir)
	}
	return Open(lode.NewFSFactory(dir))
}

// Append writes one record as its own snapshot.
func (j *Journal) Append(ctx context.Context, rec Record) error {
	if rec.CanisterID == "" || rec.Operation == "" {
		return fmt.Errorf("history record needs canister and operation, got %q/%q", rec.CanisterID, rec.Operation)
	}
	if _, err := j.dataset.Write(ctx, []any{rec.toMap()}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, DatasetID)
	}
	return nil
}

// Filter narrows a query. Empty fields match everything.
type Filter struct {
	CanisterID string
	Operation  string
}

func (f Filter) matches(rec Record) bool {
	if f.CanisterID != "" && rec.CanisterID != f.CanisterID {
		return false
	}
	if f.Operation != "" && rec.Operation != f.Operation {
		return false
	}
	return true
}

// List returns up to limit matching records, newest first.
// A limit <= 0 returns every match.
func (j *Journal) List(ctx context.Context, f Filter, limit int) ([]Record, error) {
	snapshots, err := j.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, DatasetID+"/snapshots")
	}

	var out []Record
	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		// Partition paths are a coarse pre-filter; record fields decide.
		if !snapshotMatches(snap, "canister", f.CanisterID) || !snapshotMatches(snap, "operation", f.Operation) {
			continue
		}

		data, err := j.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", DatasetID, snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindTransfer {
				continue
			}
			rec := recordFromMap(m)
			if !f.matches(rec) {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Latest returns the newest matching record or ErrNoRecords.
func (j *Journal) Latest(ctx context.Context, f Filter) (*Record, error) {
	recs, err := j.List(ctx, f, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	return &recs[0], nil
}

// snapshotMatches reports whether any file of snap sits in the key=value
// partition. An empty value matches.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasPartition matches whole path segments, so canister=a does not match
// canister=ab.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
