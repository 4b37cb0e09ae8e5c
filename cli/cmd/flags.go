// Package cmd provides CLI commands for the canisnap binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/adapter/webhook"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for inspect and for the metrics view after a transfer.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, download, upload)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// ConfigFlag points at a canisnap.yaml file.
var ConfigFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "Path to config file (default: ./canisnap.yaml if present)",
}

// TransferFlags returns the flags shared by download and upload.
func TransferFlags() []cli.Flag {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:     "canister",
			Usage:    "Canister principal",
			Required: true,
		},
		// Remote flags
		&cli.StringFlag{
			Name:  "remote-backend",
			Usage: "Snapshot service backend: fs, s3 or memory",
		},
		&cli.StringFlag{
			Name:  "remote-path",
			Usage: "Snapshot service root (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "remote-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "remote-endpoint",
			Usage: "Custom S3 endpoint URL (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "remote-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
		// Transfer flags
		&cli.Uint64Flag{
			Name:  "chunk-size",
			Usage: "Linear chunk size in bytes (0 = default 1000000)",
		},
		&cli.IntFlag{
			Name:  "linear-concurrency",
			Usage: "Concurrent calls per linear artifact window (0 = default)",
		},
		&cli.IntFlag{
			Name:  "chunk-store-concurrency",
			Usage: "Concurrent calls per chunk store window (0 = default)",
		},
		&cli.BoolFlag{
			Name:  "parallel-artifacts",
			Usage: "Transfer the four artifacts concurrently",
		},
		// Retry flags
		&cli.StringFlag{
			Name:  "retry-policy",
			Usage: "Chunk retry policy: strict or backoff",
			Value: "strict",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retries after the first attempt (backoff policy)",
		},
		&cli.DurationFlag{
			Name:  "retry-initial-interval",
			Usage: "First backoff delay (backoff policy)",
		},
		&cli.DurationFlag{
			Name:  "retry-max-interval",
			Usage: "Backoff delay cap (backoff policy)",
		},
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notification adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (redis adapter)",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Extra webhook header as KEY=VALUE (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retries after the first attempt",
			Value: webhook.DefaultRetries,
		},
		// History flags
		HistoryDirFlag(),
		// Output flags
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show live transfer progress on stderr",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
	}
	return append(flags, ReadOnlyFlags()...)
}

// HistoryDirFlag locates the transfer journal.
func HistoryDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "history-dir",
		Usage: "Directory of the transfer journal (default: history.dir from config, disabled if unset)",
	}
}

// isStderrTTY returns true if stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
