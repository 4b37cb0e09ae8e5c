// Package manifest reads and writes metadata.json, the sidecar that
// describes a downloaded snapshot folder.
//
// Encoding rules:
//   - keys are camelCase
//   - every uint64 is a decimal string, since JSON numbers lose precision
//     past 2^53
//   - binary fields are lowercase hex; the snapshot id carries a 0x prefix
//   - data always lists all four artifacts, absent ones as null
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pithecene-io/canisnap/iox"
	"github.com/pithecene-io/canisnap/types"
)

// Filename is the manifest file name inside a snapshot folder.
const Filename = "metadata.json"

// ErrInvalid is matched by every validation failure returned from Read.
var ErrInvalid = errors.New("invalid manifest")

// ValidationError names the offending manifest field.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid manifest field %q: %s: %v", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid manifest field %q: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// Path returns the manifest path inside folder.
func Path(folder string) string {
	return filepath.Join(folder, Filename)
}

// Write serializes m to folder/metadata.json. The file is written to a
// temporary name and renamed into place, so readers never see a partial
// manifest.
func Write(folder string, m *types.SnapshotManifest) (err error) {
	if m == nil {
		return errors.New("manifest is nil")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	w, err := toWire(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Encode(w); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(folder, "."+Filename+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		iox.DiscardClose(tmp)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err = iox.SyncClose(tmp); err != nil {
		return fmt.Errorf("failed to flush manifest: %w", err)
	}
	if err = os.Rename(tmpPath, Path(folder)); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// Read parses and validates folder/metadata.json. Unknown fields, missing
// required fields and malformed values are all errors; a partially valid
// manifest is never returned.
func Read(folder string) (*types.SnapshotManifest, error) {
	f, err := os.Open(Path(folder))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer iox.DiscardClose(f)

	return Decode(f)
}

// Decode parses and validates a manifest from r.
func Decode(r io.Reader) (*types.SnapshotManifest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var w wireManifest
	if err := dec.Decode(&w); err != nil {
		return nil, &ValidationError{Field: "$", Msg: "malformed JSON", Err: err}
	}
	if dec.More() {
		return nil, invalid("$", "trailing data after manifest object")
	}
	return fromWire(&w)
}
