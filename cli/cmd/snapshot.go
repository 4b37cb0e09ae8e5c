package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/cli/config"
	"github.com/pithecene-io/canisnap/cli/reader"
	"github.com/pithecene-io/canisnap/cli/render"
	"github.com/pithecene-io/canisnap/cli/tui"
	"github.com/pithecene-io/canisnap/history"
	"github.com/pithecene-io/canisnap/types"
)

// SnapshotCommand returns the snapshot command group.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Download, upload and check canister snapshots",
		Subcommands: []*cli.Command{
			snapshotDownloadCommand(),
			snapshotUploadCommand(),
			snapshotInspectCommand(),
			snapshotVerifyCommand(),
			snapshotHistoryCommand(),
		},
	}
}

func snapshotDownloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download a snapshot into a new local folder",
		Flags: append(TransferFlags(),
			&cli.StringFlag{
				Name:     "snapshot",
				Usage:    "Snapshot id (0x hex)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Parent directory for the snapshot folder (default: output_dir or .)",
			},
		),
		Action: downloadAction,
	}
}

func downloadAction(c *cli.Context) error {
	env, err := newTransferEnv(c, types.OperationDownload, c.String("snapshot"))
	if err != nil {
		return err
	}
	defer env.close()

	parent := resolveString(c, "dir", configVal(env.cfg, func(c *config.Config) string { return c.OutputDir }))
	if parent == "" {
		parent = "."
	}

	ctx, stop := signalContext(c)
	defer stop()

	res, err := env.orch.Download(ctx, env.meta.CanisterID, env.meta.SnapshotID, parent)
	out := outcome{folder: filepath.Join(parent, env.meta.SnapshotID.String()), err: err}
	if err == nil {
		out.folder = res.Folder
		out.view = &reader.TransferView{
			Operation:  string(types.OperationDownload),
			TransferID: env.meta.TransferID,
			CanisterID: env.meta.CanisterID,
			SnapshotID: res.Manifest.SnapshotID.String(),
			Folder:     res.Folder,
			Artifacts:  len(res.Manifest.Data.Present()),
			TotalBytes: res.Manifest.Data.TotalBytes(),
			DurationMs: res.Duration.Milliseconds(),
		}
	}
	return env.complete(c, out)
}

func snapshotUploadCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "Upload a local snapshot folder",
		Flags: append(TransferFlags(),
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Snapshot folder containing metadata.json",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "target-id",
				Usage: "Existing snapshot id to replace (0x hex)",
			},
		),
		Action: uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	var replace types.SnapshotID
	if s := c.String("target-id"); s != "" {
		id, err := types.ParseSnapshotID(s)
		if err != nil {
			return configError("invalid --target-id: %v", err)
		}
		replace = id
	}

	env, err := newTransferEnv(c, types.OperationUpload, "")
	if err != nil {
		return err
	}
	defer env.close()

	folder := c.String("dir")
	ctx, stop := signalContext(c)
	defer stop()

	res, err := env.orch.Upload(ctx, env.meta.CanisterID, folder, replace)
	out := outcome{folder: folder, err: err}
	if err == nil {
		env.meta.SnapshotID = res.SnapshotID
		out.view = &reader.TransferView{
			Operation:  string(types.OperationUpload),
			TransferID: env.meta.TransferID,
			CanisterID: env.meta.CanisterID,
			SnapshotID: res.SnapshotID.String(),
			Folder:     folder,
			Artifacts:  len(res.Manifest.Data.Present()),
			TotalBytes: res.Bytes,
			DurationMs: res.Duration.Milliseconds(),
		}
	}
	return env.complete(c, out)
}

func snapshotInspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Show the manifest of a local snapshot folder",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Snapshot folder containing metadata.json",
				Required: true,
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError("%v", err)
	}

	view, err := reader.InspectSnapshot(c.String("dir"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("inspect failed: %v", err), exitTransferFailure)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSnapshot, view)
	}
	return r.Render(view)
}

func snapshotVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check every artifact file of a local snapshot against its manifest",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Snapshot folder containing metadata.json",
				Required: true,
			},
		),
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError("%v", err)
	}
	if c.Bool("tui") {
		return configError("--tui is not supported for snapshot verify")
	}

	view, verr := reader.VerifySnapshot(c.String("dir"))
	if err := r.Render(view); err != nil {
		return errors.Join(err, verr)
	}
	if verr != nil {
		return cli.Exit(fmt.Sprintf("verify failed: %v", verr), exitTransferFailure)
	}
	return nil
}

func snapshotHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List finished transfers from the journal",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			HistoryDirFlag(),
			&cli.StringFlag{
				Name:  "canister",
				Usage: "Only transfers of this canister",
			},
			&cli.StringFlag{
				Name:  "operation",
				Usage: "Only download or upload transfers",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum entries to show (0 for all)",
				Value: 20,
			},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	if c.Bool("tui") {
		return configError("--tui is not supported for snapshot history")
	}
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return configError("%v", err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError("%v", err)
	}

	dir := resolveString(c, "history-dir", configVal(cfg, func(c *config.Config) string { return c.History.Dir }))
	if dir == "" {
		return configError("--history-dir is required (or set history.dir in config)")
	}
	op := c.String("operation")
	switch types.Operation(op) {
	case "", types.OperationDownload, types.OperationUpload:
	default:
		return configError("invalid --operation %q (want %s or %s)", op, types.OperationDownload, types.OperationUpload)
	}
	if c.Int("limit") < 0 {
		return configError("--limit must be >= 0, got %d", c.Int("limit"))
	}

	views, err := reader.ListHistory(c.Context, dir, history.Filter{
		CanisterID: c.String("canister"),
		Operation:  op,
	}, c.Int("limit"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("history failed: %v", err), exitTransferFailure)
	}
	return r.Render(views)
}
