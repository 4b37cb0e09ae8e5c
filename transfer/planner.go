// Package transfer moves canister snapshots between a remote service and a
// local folder.
//
// An artifact is split into chunk descriptors by the planner, fetched or
// pushed in bounded windows by the scheduler, and checked by the integrity
// tracker. The orchestrator sequences the four artifacts and owns the
// metadata.json manifest.
package transfer

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/canisnap/types"
)

// DefaultChunkSize is the byte size of every linear chunk except the last.
const DefaultChunkSize = 1_000_000

// Plan limits. Sizes come from remote metadata or a local manifest and are
// checked before anything is allocated.
const (
	// MaxLinearSize bounds the declared size of one linear artifact (1 TiB).
	MaxLinearSize = 1 << 40
	// MaxPlanChunks bounds the number of ranges in one linear plan.
	MaxPlanChunks = 1 << 20
)

// ErrPlanTooLarge is returned for a linear artifact that exceeds the plan
// limits.
var ErrPlanTooLarge = errors.New("artifact plan too large")

// CheckLinear reports whether PlanLinear would accept size and chunkSize.
func CheckLinear(a types.Artifact, size, chunkSize uint64) error {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if size > MaxLinearSize {
		return fmt.Errorf("%w: %s declares %d bytes, limit is %d", ErrPlanTooLarge, a, size, uint64(MaxLinearSize))
	}
	if n := chunkCount(size, chunkSize); n > MaxPlanChunks {
		return fmt.Errorf("%w: %s needs %d chunks of %d bytes, limit is %d", ErrPlanTooLarge, a, n, chunkSize, MaxPlanChunks)
	}
	return nil
}

func chunkCount(size, chunkSize uint64) uint64 {
	n := size / chunkSize
	if size%chunkSize != 0 {
		n++
	}
	return n
}

// PlanLinear splits a linear artifact of size bytes into consecutive
// ranges of chunkSize bytes. The last range carries the remainder. A zero
// size yields an empty plan; a zero chunkSize means DefaultChunkSize.
func PlanLinear(a types.Artifact, size, chunkSize uint64) ([]types.ChunkDescriptor, error) {
	if size == 0 {
		return nil, nil
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if err := CheckLinear(a, size, chunkSize); err != nil {
		return nil, err
	}

	out := make([]types.ChunkDescriptor, 0, chunkCount(size, chunkSize))
	for offset := uint64(0); offset < size; {
		n := min(chunkSize, size-offset)
		out = append(out, types.LinearRange(a, offset, n))
		offset += n
	}
	return out, nil
}

// PlanChunkStore returns one descriptor per chunk store hash, in list order.
func PlanChunkStore(hashes [][]byte) []types.ChunkDescriptor {
	if len(hashes) == 0 {
		return nil
	}
	out := make([]types.ChunkDescriptor, len(hashes))
	for i, h := range hashes {
		out[i] = types.ChunkStoreEntry(h, i)
	}
	return out
}
