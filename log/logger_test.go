package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/canisnap/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_TransferContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.TransferMeta{
		TransferID: "tr-1",
		Operation:  types.OperationDownload,
		CanisterID: "aaaaa-aa",
		SnapshotID: types.SnapshotID{0x01, 0x02},
	}).WithOutput(&buf)

	logger.Info("artifact downloaded", map[string]any{"artifact": "wasmMemory"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	for key, want := range map[string]string{
		"message":     "artifact downloaded",
		"level":       "info",
		"transfer_id": "tr-1",
		"operation":   "download",
		"canister_id": "aaaaa-aa",
		"snapshot_id": "0x0102",
	} {
		if e[key] != want {
			t.Errorf("%s = %v, want %q", key, e[key], want)
		}
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["artifact"] != "wasmMemory" {
		t.Errorf("fields = %v", e["fields"])
	}
}

func TestLogger_WithLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.TransferMeta{TransferID: "tr-2"}).WithOutput(&buf)

	logger.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug entry emitted at info level: %s", buf.String())
	}

	logger = logger.WithLevel(zapcore.DebugLevel)
	logger.Debug("shown", nil)
	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Errorf("entries = %v", entries)
	}
	if entries[0]["transfer_id"] != "tr-2" {
		t.Error("context lost after WithLevel")
	}
}

func TestLogger_WithSnapshotID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.TransferMeta{Operation: types.OperationUpload}).WithOutput(&buf)

	logger.Info("before", nil)
	logger.WithSnapshotID(types.SnapshotID{0xff}).Info("after", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if _, ok := entries[0]["snapshot_id"]; ok {
		t.Error("snapshot_id present before it was known")
	}
	if entries[1]["snapshot_id"] != "0xff" {
		t.Errorf("snapshot_id = %v, want 0xff", entries[1]["snapshot_id"])
	}
}

func TestLogger_Nop(t *testing.T) {
	logger := Nop()
	logger.Info("nothing", map[string]any{"a": 1})
	logger.Sugar().Infof("nothing %d", 1)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	if err != nil || lvl != zapcore.WarnLevel {
		t.Errorf("ParseLevel(warn) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSugaredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&types.TransferMeta{TransferID: "tr-3"}).WithOutput(&buf)
	logger.Sugar().With("artifact", "heap").Warnf("retrying %d", 2)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0]["message"] != "retrying 2" || entries[0]["artifact"] != "heap" {
		t.Errorf("entry = %v", entries[0])
	}
}
