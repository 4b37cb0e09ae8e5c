package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/canisnap/adapter"
	"github.com/pithecene-io/canisnap/adapter/redis"
	"github.com/pithecene-io/canisnap/adapter/webhook"
	"github.com/pithecene-io/canisnap/cli/config"
)

// Adapter types.
const (
	adapterWebhook = "webhook"
	adapterRedis   = "redis"
)

// adapterChoice holds the resolved notification adapter configuration.
type adapterChoice struct {
	typ     string
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries int
}

// parseAdapterConfig resolves adapter flags against the config file.
// An empty typ means no adapter.
func parseAdapterConfig(c *cli.Context, cfg *config.Config) (adapterChoice, error) {
	choice := adapterChoice{
		typ:     resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })),
		url:     resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel: resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout: resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries: resolveIntPtr(c, "adapter-retries", configVal(cfg, func(c *config.Config) *int { return c.Adapter.Retries })),
	}
	if choice.typ == "" {
		return choice, nil
	}

	switch choice.typ {
	case adapterWebhook, adapterRedis:
	default:
		return choice, fmt.Errorf("unknown adapter type %q (must be %s or %s)", choice.typ, adapterWebhook, adapterRedis)
	}
	if choice.url == "" {
		return choice, fmt.Errorf("--adapter-url is required when --adapter=%s", choice.typ)
	}
	if choice.retries < 0 {
		return choice, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}

	// Config headers first; --adapter-header entries override by key.
	choice.headers = make(map[string]string)
	for k, v := range configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }) {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return choice, fmt.Errorf("invalid --adapter-header %q (want KEY=VALUE)", h)
		}
		choice.headers[k] = v
	}
	return choice, nil
}

// buildAdapter creates the adapter for choice, or nil when none is configured.
func buildAdapter(choice adapterChoice) (adapter.Adapter, error) {
	switch choice.typ {
	case "":
		return nil, nil
	case adapterWebhook:
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case adapterRedis:
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", choice.typ)
	}
}
