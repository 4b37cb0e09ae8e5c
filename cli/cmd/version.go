package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/cli/render"
	"github.com/pithecene-io/canisnap/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command.
// It never opens the remote service.
func VersionCommand(_, commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return configError("%v", err)
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return configError("--tui is not supported for version command")
		}

		resp := VersionResponse{
			Version: types.Version,
			Commit:  commit,
		}

		return r.Render(resp)
	}
}
