// Package iox provides I/O helpers for file durability and resource cleanup.
package iox

import (
	"errors"
	"io"
)

// SyncCloser is a closer whose buffered writes can be flushed to stable
// storage. *os.File satisfies it.
type SyncCloser interface {
	io.Closer
	Sync() error
}

// SyncClose syncs f and then closes it. The close always happens; the
// first error wins.
//
//	if err := iox.SyncClose(f); err != nil { ... }
func SyncClose(f SyncCloser) error {
	syncErr := f.Sync()
	closeErr := f.Close()
	return errors.Join(syncErr, closeErr)
}

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(svc))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// CountingWriter counts the bytes that pass through it to W.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
