package transfer

import (
	"errors"

	"github.com/pithecene-io/canisnap/log"
	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/policy"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/types"
)

// Config configures the download and upload pipelines and the
// orchestrator driving them.
type Config struct {
	// Service is the remote snapshot API. Required.
	Service remote.Service
	// ChunkSize is the linear chunk size (default: DefaultChunkSize).
	ChunkSize uint64
	// LinearConcurrency bounds a linear artifact window (default: LinearConcurrency).
	LinearConcurrency int
	// ChunkStoreConcurrency bounds a chunk store window (default: ChunkStoreConcurrency).
	ChunkStoreConcurrency int
	// ParallelArtifacts transfers the four artifacts concurrently instead
	// of one after another. Bytes within an artifact stay in offset order.
	ParallelArtifacts bool
	// Retry wraps every chunk call. If nil, strict (single attempt).
	Retry policy.Retry
	// Logger receives per-artifact and per-window entries. If nil, discarded.
	Logger *log.Logger
	// Collector records transfer metrics. If nil, nothing is recorded
	// (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// OnProgress, if set, is called after every completed window.
	// With ParallelArtifacts it is called from several goroutines.
	OnProgress func(types.Progress)
}

func (c Config) withDefaults() (Config, error) {
	if c.Service == nil {
		return c, errors.New("transfer: remote service is required")
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.LinearConcurrency <= 0 {
		c.LinearConcurrency = LinearConcurrency
	}
	if c.ChunkStoreConcurrency <= 0 {
		c.ChunkStoreConcurrency = ChunkStoreConcurrency
	}
	if c.Retry == nil {
		c.Retry = policy.NewStrict()
	}
	if c.Logger == nil {
		c.Logger = log.Nop()
	}
	return c, nil
}

// window builds scheduler options for one artifact. bytes reports the
// payload bytes delivered so far and is read after each window.
func (c *Config) window(a types.Artifact, limit int, bytes *uint64) WindowOptions {
	return WindowOptions{
		Limit: limit,
		Retry: c.Retry,
		OnWindow: func(done, total int) {
			c.Collector.IncWindowCompleted()
			c.Logger.Debug("window completed", map[string]any{
				"artifact": string(a),
				"done":     done,
				"total":    total,
				"bytes":    *bytes,
			})
			if c.OnProgress != nil {
				c.OnProgress(types.Progress{Artifact: a, Done: done, Total: total, Bytes: *bytes})
			}
		},
	}
}
