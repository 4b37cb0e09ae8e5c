package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/cli/config"
)

// Config precedence: an explicitly set flag wins, then the config file,
// then the flag's own default.

// configVal reads a field from cfg, returning the zero value for a nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

func resolveInt(c *cli.Context, name string, fromConfig int) int {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Int(name)
	}
	return fromConfig
}

func resolveUint64(c *cli.Context, name string, fromConfig uint64) uint64 {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Uint64(name)
	}
	return fromConfig
}

func resolveBool(c *cli.Context, name string, fromConfig bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fromConfig || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, fromConfig time.Duration) time.Duration {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Duration(name)
	}
	return fromConfig
}

// resolveIntPtr is resolveInt for optional config values where an explicit
// zero must override the flag default.
func resolveIntPtr(c *cli.Context, name string, fromConfig *int) int {
	if c.IsSet(name) || fromConfig == nil {
		return c.Int(name)
	}
	return *fromConfig
}
