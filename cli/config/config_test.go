package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `output_dir: ./snapshots

remote:
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

transfer:
  chunk_size: 2000000
  linear_concurrency: 8
  chunk_store_concurrency: 4
  parallel_artifacts: true

retry:
  policy: backoff
  max_retries: 5
  initial_interval: 250ms
  max_interval: 4s

adapter:
  type: webhook
  url: https://hooks.example.com/canisnap
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

log:
  level: debug
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "output_dir", cfg.OutputDir, "./snapshots")

	// Remote
	assertEqual(t, "remote.backend", cfg.Remote.Backend, "s3")
	assertEqual(t, "remote.path", cfg.Remote.Path, "my-bucket/prefix")
	assertEqual(t, "remote.region", cfg.Remote.Region, "us-east-1")
	assertEqual(t, "remote.endpoint", cfg.Remote.Endpoint, "https://example.com")
	if !cfg.Remote.S3PathStyle {
		t.Error("expected remote.s3_path_style=true")
	}

	// Transfer
	if cfg.Transfer.ChunkSize != 2_000_000 {
		t.Errorf("expected transfer.chunk_size=2000000, got %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Transfer.LinearConcurrency != 8 || cfg.Transfer.ChunkStoreConcurrency != 4 {
		t.Errorf("expected concurrency 8/4, got %d/%d", cfg.Transfer.LinearConcurrency, cfg.Transfer.ChunkStoreConcurrency)
	}
	if !cfg.Transfer.ParallelArtifacts {
		t.Error("expected transfer.parallel_artifacts=true")
	}

	// Retry
	assertEqual(t, "retry.policy", cfg.Retry.Policy, "backoff")
	if cfg.Retry.MaxRetries == nil || *cfg.Retry.MaxRetries != 5 {
		t.Error("expected retry.max_retries=5")
	}
	if cfg.Retry.InitialInterval.Duration != 250*time.Millisecond {
		t.Errorf("expected retry.initial_interval=250ms, got %v", cfg.Retry.InitialInterval.Duration)
	}
	if cfg.Retry.MaxInterval.Duration != 4*time.Second {
		t.Errorf("expected retry.max_interval=4s, got %v", cfg.Retry.MaxInterval.Duration)
	}

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/canisnap")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}

	assertEqual(t, "log.level", cfg.Log.Level, "debug")
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for empty config: %v", err)
	}
	if cfg.Remote.Backend != "" {
		t.Errorf("expected empty backend, got %q", cfg.Remote.Backend)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/canisnap.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "remote: [unclosed")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CANISNAP_BUCKET", "bucket-from-env")
	path := writeTemp(t, "remote:\n  path: ${TEST_CANISNAP_BUCKET}/snaps\n  region: ${UNSET_REGION_98765:-eu-west-1}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "remote.path", cfg.Remote.Path, "bucket-from-env/snaps")
	assertEqual(t, "remote.region", cfg.Remote.Region, "eu-west-1")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `output_dir: ./snapshots
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `remote:
  backend: fs
  path: ./data
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.OutputDir != "" {
		t.Errorf("expected empty output_dir, got %q", cfg.OutputDir)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.OutputDir != "" {
		t.Errorf("expected empty output_dir, got %q", cfg.OutputDir)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
retry:
  max_retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Fatal("expected adapter.retries to be *int(0)")
	}
	if cfg.Retry.MaxRetries == nil || *cfg.Retry.MaxRetries != 0 {
		t.Fatal("expected retry.max_retries to be *int(0)")
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
	if cfg.Retry.MaxRetries != nil {
		t.Errorf("expected max_retries to be nil, got %d", *cfg.Retry.MaxRetries)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative linear concurrency", "transfer:\n  linear_concurrency: -1\n", "linear_concurrency"},
		{"negative chunk store concurrency", "transfer:\n  chunk_store_concurrency: -2\n", "chunk_store_concurrency"},
		{"negative max retries", "retry:\n  max_retries: -1\n", "max_retries"},
		{"negative adapter retries", "adapter:\n  type: redis\n  url: redis://x\n  retries: -1\n", "adapter.retries"},
		{"adapter without url", "adapter:\n  type: webhook\n", "adapter.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `adapter:
  timeout: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
  timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: canisnap:transfer_completed
  timeout: 5s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "canisnap:transfer_completed")
	if cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("expected adapter.timeout=5s, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoadOptional(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		cfg, err := LoadOptional(writeTemp(t, "output_dir: /snaps\n"))
		if err != nil {
			t.Fatalf("LoadOptional failed: %v", err)
		}
		assertEqual(t, "output_dir", cfg.OutputDir, "/snaps")
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error for explicit missing file")
		}
	})

	t.Run("default file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultPath), []byte("log:\n  level: warn\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)
		cfg, err := LoadOptional("")
		if err != nil {
			t.Fatalf("LoadOptional failed: %v", err)
		}
		assertEqual(t, "log.level", cfg.Log.Level, "warn")
	})

	t.Run("no file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := LoadOptional("")
		if err != nil {
			t.Fatalf("LoadOptional failed: %v", err)
		}
		if cfg == nil || cfg.OutputDir != "" {
			t.Errorf("expected empty config, got %+v", cfg)
		}
	})
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "canisnap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
