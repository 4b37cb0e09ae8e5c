package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/adapter"
	"github.com/pithecene-io/canisnap/cli/config"
	"github.com/pithecene-io/canisnap/cli/reader"
	"github.com/pithecene-io/canisnap/cli/render"
	"github.com/pithecene-io/canisnap/cli/tui"
	"github.com/pithecene-io/canisnap/history"
	"github.com/pithecene-io/canisnap/log"
	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/policy"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/remote/storesvc"
	"github.com/pithecene-io/canisnap/transfer"
	"github.com/pithecene-io/canisnap/types"
)

// Exit codes.
const (
	exitSuccess         = 0
	exitTransferFailure = 1
	exitConfigError     = 2
)

// configError wraps a usage or configuration problem in its exit code.
func configError(format string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(format, args...), exitConfigError)
}

// transferEnv is everything a download or upload needs, resolved from
// flags and the config file.
type transferEnv struct {
	cfg       *config.Config
	meta      types.TransferMeta
	backend   string
	logger    *log.Logger
	collector *metrics.Collector
	service   remote.Service
	adapter   adapter.Adapter
	journal   *history.Journal
	progress  *tui.Progress
	renderer  *render.Renderer
	orch      *transfer.Orchestrator
	quiet     bool
	tui       bool
}

// newTransferEnv resolves configuration and opens the remote service.
// snapshotID may be empty (uploads learn it from the remote).
//
// Steps:
//  1. Load config (--config or ./canisnap.yaml)
//  2. Resolve log level, renderer, retry policy, adapter and journal
//  3. Open the remote backend and wrap it with metrics
//  4. Build the orchestrator, optionally feeding a progress view
func newTransferEnv(c *cli.Context, op types.Operation, snapshotID string) (*transferEnv, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, configError("%v", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, configError("%v", err)
	}

	level, err := log.ParseLevel(resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level })))
	if err != nil {
		return nil, configError("%v", err)
	}

	env := &transferEnv{
		cfg:      cfg,
		renderer: r,
		quiet:    c.Bool("quiet"),
		tui:      c.Bool("tui"),
		meta: types.TransferMeta{
			TransferID: uuid.NewString(),
			Operation:  op,
			CanisterID: c.String("canister"),
		},
	}
	if snapshotID != "" {
		id, err := types.ParseSnapshotID(snapshotID)
		if err != nil {
			return nil, configError("invalid snapshot id: %v", err)
		}
		env.meta.SnapshotID = id
	}
	env.logger = log.NewLogger(&env.meta).WithLevel(level)

	retry, err := buildRetry(c, cfg)
	if err != nil {
		return nil, configError("invalid retry config: %v", err)
	}

	choice, err := parseAdapterConfig(c, cfg)
	if err != nil {
		return nil, configError("invalid adapter config: %v", err)
	}
	if env.adapter, err = buildAdapter(choice); err != nil {
		return nil, configError("invalid adapter config: %v", err)
	}

	if dir := resolveString(c, "history-dir", configVal(cfg, func(c *config.Config) string { return c.History.Dir })); dir != "" {
		if env.journal, err = history.OpenFS(dir); err != nil {
			env.close()
			return nil, configError("invalid history dir: %v", err)
		}
	}

	remoteCfg := buildRemoteConfig(c, cfg)
	if remoteCfg.Backend == "" {
		env.close()
		return nil, configError("--remote-backend is required (or set remote.backend in config)")
	}
	if err := remoteCfg.Validate(); err != nil {
		env.close()
		return nil, configError("invalid remote config: %v", err)
	}
	svc, err := storesvc.Open(c.Context, remoteCfg)
	if err != nil {
		env.close()
		return nil, cli.Exit(fmt.Sprintf("failed to open remote: %v", err), exitTransferFailure)
	}
	env.backend = remoteCfg.Backend

	env.collector = metrics.NewCollector(string(op), remoteCfg.Backend, retry.Name(), env.meta.CanisterID, snapshotID)
	env.service = remote.NewInstrumentedService(svc, env.collector)

	tcfg := transfer.Config{
		Service:               env.service,
		ChunkSize:             resolveUint64(c, "chunk-size", configVal(cfg, func(c *config.Config) uint64 { return c.Transfer.ChunkSize })),
		LinearConcurrency:     resolveInt(c, "linear-concurrency", configVal(cfg, func(c *config.Config) int { return c.Transfer.LinearConcurrency })),
		ChunkStoreConcurrency: resolveInt(c, "chunk-store-concurrency", configVal(cfg, func(c *config.Config) int { return c.Transfer.ChunkStoreConcurrency })),
		ParallelArtifacts:     resolveBool(c, "parallel-artifacts", configVal(cfg, func(c *config.Config) bool { return c.Transfer.ParallelArtifacts })),
		Retry:                 retry,
		Logger:                env.logger,
		Collector:             env.collector,
	}

	if c.Bool("progress") && !env.quiet {
		if isStderrTTY() {
			env.progress = tui.StartProgress(progressTitle(op, env.meta), os.Stderr)
			tcfg.OnProgress = env.progress.Update
		} else {
			env.logger.Sugar().Warnf("--progress ignored: stderr is not a terminal")
		}
	}

	if env.orch, err = transfer.New(tcfg); err != nil {
		env.close()
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return env, nil
}

func progressTitle(op types.Operation, meta types.TransferMeta) string {
	switch op {
	case types.OperationDownload:
		return fmt.Sprintf("Downloading %s from %s", meta.SnapshotID, meta.CanisterID)
	default:
		return fmt.Sprintf("Uploading to %s", meta.CanisterID)
	}
}

// buildRemoteConfig resolves the remote backend flags against the config file.
func buildRemoteConfig(c *cli.Context, cfg *config.Config) storesvc.Config {
	return storesvc.Config{
		Backend:      resolveString(c, "remote-backend", configVal(cfg, func(c *config.Config) string { return c.Remote.Backend })),
		Path:         resolveString(c, "remote-path", configVal(cfg, func(c *config.Config) string { return c.Remote.Path })),
		Region:       resolveString(c, "remote-region", configVal(cfg, func(c *config.Config) string { return c.Remote.Region })),
		Endpoint:     resolveString(c, "remote-endpoint", configVal(cfg, func(c *config.Config) string { return c.Remote.Endpoint })),
		UsePathStyle: resolveBool(c, "remote-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Remote.S3PathStyle })),
	}
}

// buildRetry resolves the chunk retry policy. Only transport failures that
// remote.Retryable accepts are retried. An unset retry count leaves the
// policy default; an explicit zero disables retries.
func buildRetry(c *cli.Context, cfg *config.Config) (policy.Retry, error) {
	var maxRetries *uint64
	fromConfig := configVal(cfg, func(c *config.Config) *int { return c.Retry.MaxRetries })
	if c.IsSet("max-retries") || fromConfig != nil {
		n := resolveIntPtr(c, "max-retries", fromConfig)
		if n < 0 {
			return nil, fmt.Errorf("--max-retries must be >= 0, got %d", n)
		}
		u := uint64(n)
		maxRetries = &u
	}
	return policy.New(policy.Config{
		Name:            resolveString(c, "retry-policy", configVal(cfg, func(c *config.Config) string { return c.Retry.Policy })),
		MaxRetries:      maxRetries,
		InitialInterval: resolveDuration(c, "retry-initial-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Retry.InitialInterval.Duration })),
		MaxInterval:     resolveDuration(c, "retry-max-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Retry.MaxInterval.Duration })),
		Retryable:       remote.Retryable,
	})
}

// signalContext cancels on SIGINT or SIGTERM. The in-flight window
// finishes or fails; no new window starts.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// outcome is the finished transfer handed to complete.
type outcome struct {
	view   *reader.TransferView
	folder string
	err    error
}

// complete stops progress, publishes the notification, journals the
// transfer, renders the result and maps the error to an exit code.
func (env *transferEnv) complete(c *cli.Context, out outcome) error {
	if env.progress != nil {
		env.progress.Stop()
	}
	snap := env.collector.Snapshot()
	event := env.event(out)
	env.publish(c.Context, event)
	env.record(c.Context, event, snap)

	mv := reader.NewMetricsView(snap)
	env.logger.Info("transfer metrics", map[string]any{
		"chunks_read":    snap.ChunksRead,
		"chunks_written": snap.ChunksWritten,
		"bytes_read":     snap.BytesRead,
		"bytes_written":  snap.BytesWritten,
		"windows":        snap.WindowsCompleted,
		"attempts":       snap.Attempts,
		"retries":        snap.Retries,
		"call_failures":  snap.RemoteCallFailure,
	})

	if out.err != nil {
		return cli.Exit(fmt.Sprintf("%s failed: %v", env.meta.Operation, out.err), exitTransferFailure)
	}
	if env.quiet {
		return nil
	}
	if env.tui {
		return env.renderer.RenderTUI(tui.ViewStatsTransfer, mv)
	}
	out.view.Metrics = mv
	return env.renderer.Render(out.view)
}

// publish sends the completion event, if an adapter is configured.
// Failures are logged and do not change the exit code.
func (env *transferEnv) publish(ctx context.Context, event *adapter.TransferCompletedEvent) {
	if env.adapter == nil {
		return
	}
	if err := env.adapter.Publish(ctx, event); err != nil {
		env.logger.Warn("notification failed", map[string]any{"error": err.Error()})
		return
	}
	env.logger.Debug("notification published", map[string]any{"event_type": event.EventType})
}

// record appends the transfer to the journal, if one is configured.
// Failures are logged and do not change the exit code.
func (env *transferEnv) record(ctx context.Context, event *adapter.TransferCompletedEvent, snap metrics.Snapshot) {
	if env.journal == nil {
		return
	}
	rec := history.Record{
		TransferID:  event.TransferID,
		Operation:   string(env.meta.Operation),
		CanisterID:  event.CanisterID,
		SnapshotID:  event.SnapshotID,
		Backend:     env.backend,
		Outcome:     event.Outcome,
		ErrorKind:   event.ErrorKind,
		Folder:      event.Folder,
		Artifacts:   event.Artifacts,
		TotalBytes:  event.Bytes,
		DurationMs:  event.DurationMs,
		Chunks:      snap.ChunksRead + snap.ChunksWritten,
		Retries:     snap.Retries,
		CompletedAt: time.Now(),
	}
	if err := env.journal.Append(ctx, rec); err != nil {
		env.logger.Warn("history append failed", map[string]any{"error": err.Error()})
		return
	}
	env.logger.Debug("history appended", map[string]any{"transfer_id": rec.TransferID})
}

// event builds the completion event for out.
func (env *transferEnv) event(out outcome) *adapter.TransferCompletedEvent {
	eventType := adapter.EventSnapshotDownloaded
	if env.meta.Operation == types.OperationUpload {
		eventType = adapter.EventSnapshotUploaded
	}

	ev := &adapter.TransferCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       eventType,
		TransferID:      env.meta.TransferID,
		CanisterID:      env.meta.CanisterID,
		Outcome:         adapter.OutcomeSuccess,
		Folder:          out.folder,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if !env.meta.SnapshotID.IsZero() {
		ev.SnapshotID = env.meta.SnapshotID.String()
	}
	if out.view != nil {
		ev.SnapshotID = out.view.SnapshotID
		ev.Artifacts = out.view.Artifacts
		ev.Bytes = out.view.TotalBytes
		ev.DurationMs = out.view.DurationMs
	}
	if out.err != nil {
		ev.Outcome = adapter.OutcomeFailed
		ev.ErrorKind = transfer.KindOf(out.err).String()
	}
	return ev
}

// close releases the adapter and the remote service.
func (env *transferEnv) close() {
	if env.adapter != nil {
		if err := env.adapter.Close(); err != nil {
			env.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	if env.service != nil {
		_ = env.service.Close()
	}
	if env.logger != nil {
		_ = env.logger.Sync()
	}
}
