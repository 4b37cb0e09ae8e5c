package transfer

import (
	"crypto/sha256"
	"hash"
	"io"
	"os"

	"github.com/pithecene-io/canisnap/iox"
	"github.com/pithecene-io/canisnap/types"
)

// HashingWriter folds every byte into a running SHA-256 before passing it
// to the underlying writer, so the digest always reflects the exact byte
// sequence handed to the file.
type HashingWriter struct {
	w       io.Writer
	h       hash.Hash
	written uint64
}

// NewHashingWriter wraps w.
func NewHashingWriter(w io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: sha256.New()}
}

func (hw *HashingWriter) Write(p []byte) (int, error) {
	hw.h.Write(p)
	n, err := hw.w.Write(p)
	hw.written += uint64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Sum returns the digest of everything written so far.
func (hw *HashingWriter) Sum() types.Digest {
	var d types.Digest
	copy(d[:], hw.h.Sum(nil))
	return d
}

// Written returns the number of bytes accepted by the underlying writer.
func (hw *HashingWriter) Written() uint64 {
	return hw.written
}

// HashFile returns the SHA-256 and byte length of the file at path.
func HashFile(path string) (types.Digest, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Digest{}, 0, err
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return types.Digest{}, 0, err
	}

	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d, uint64(n), nil
}

// VerifyFile checks the file at path against its manifest descriptor.
// The size is compared first, from a stat, so a truncated file fails
// without being hashed.
func VerifyFile(path string, a types.Artifact, want *types.SnapshotFile) error {
	info, err := os.Stat(path)
	if err != nil {
		return ioError(a, path, err)
	}
	if size := uint64(info.Size()); size != want.Size {
		return sizeMismatch(a, path, want.Size, size)
	}

	got, n, err := HashFile(path)
	if err != nil {
		return ioError(a, path, err)
	}
	if n != want.Size {
		// Changed between stat and read.
		return sizeMismatch(a, path, want.Size, n)
	}
	if got != want.Hash {
		return hashMismatch(a, path, want.Hash.String(), got.String())
	}
	return nil
}
