// Package frame implements the on-disk record framing of chunks-store.bin.
//
// The chunk store artifact is a sequence of frames. Each frame is a 4-byte
// big-endian payload length followed by a msgpack-encoded Record. Framing
// keeps entry boundaries intact so the file can be split back into
// content-addressed entries on upload.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Record is one chunk store entry: its content hash and its bytes.
type Record struct {
	Hash []byte `msgpack:"hash"`
	Data []byte `msgpack:"data"`
}

// ErrorKind classifies frame errors.
type ErrorKind int

const (
	// ErrorPartial indicates a truncated or incomplete frame.
	ErrorPartial ErrorKind = iota
	// ErrorTooLarge indicates a frame exceeding MaxFrameSize.
	ErrorTooLarge
	// ErrorDecode indicates a msgpack decoding error.
	ErrorDecode
	// ErrorEncode indicates a msgpack encoding error.
	ErrorEncode
)

// FrameError represents a framing error.
type FrameError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the file can no longer be walked past this error.
// Partial and oversized frames are fatal.
func (e *FrameError) IsFatal() bool {
	return e.Kind == ErrorPartial || e.Kind == ErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Encode returns the complete frame (length prefix and payload) for rec.
func Encode(rec *Record) ([]byte, error) {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, &FrameError{Kind: ErrorEncode, Msg: "failed to encode record", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: ErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// Encoder writes framed records to a stream.
type Encoder struct {
	writer io.Writer
}

// NewEncoder creates a new frame encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// WriteRecord frames rec and writes it. It returns the number of bytes
// written, prefix included.
func (e *Encoder) WriteRecord(rec *Record) (int, error) {
	buf, err := Encode(rec)
	if err != nil {
		return 0, err
	}
	return e.writer.Write(buf)
}

// Decoder reads framed records from a stream.
type Decoder struct {
	reader io.Reader
}

// NewDecoder creates a new frame decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// ReadFrame reads a single frame and returns its raw msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=ErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=ErrorTooLarge: frame exceeds limit (fatal)
func (d *Decoder) ReadFrame() ([]byte, error) {
	payloadSize, err := readPrefix(d.reader)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{Kind: ErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// ReadRecord reads and decodes the next record.
func (d *Decoder) ReadRecord() (*Record, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeRecord(payload)
}

// DecodeRecord decodes a frame payload as a Record.
func DecodeRecord(payload []byte) (*Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{Kind: ErrorDecode, Msg: "failed to decode record", Err: err}
	}
	return &rec, nil
}

// Ref locates one frame payload within a chunk store file.
type Ref struct {
	// Offset is the byte offset of the payload (after the length prefix).
	Offset int64
	// Length is the payload length in bytes.
	Length uint32
}

// FrameSize returns the full frame size, prefix included.
func (r Ref) FrameSize() int64 {
	return LengthPrefixSize + int64(r.Length)
}

// Index walks the stream and returns the location of every frame without
// decoding payloads.
func Index(r io.Reader) ([]Ref, error) {
	var (
		refs   []Ref
		offset int64
	)
	for {
		payloadSize, err := readPrefix(r)
		if errors.Is(err, io.EOF) {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}

		ref := Ref{Offset: offset + LengthPrefixSize, Length: payloadSize}
		n, err := io.CopyN(io.Discard, r, int64(payloadSize))
		if err != nil {
			return nil, &FrameError{
				Kind: ErrorPartial,
				Msg:  fmt.Sprintf("frame %d truncated: read %d of %d payload bytes", len(refs), n, payloadSize),
				Err:  err,
			}
		}
		refs = append(refs, ref)
		offset += ref.FrameSize()
	}
}

// ReadRecordAt decodes the record located by ref.
func ReadRecordAt(ra io.ReaderAt, ref Ref) (*Record, error) {
	payload := make([]byte, ref.Length)
	n, err := ra.ReadAt(payload, ref.Offset)
	if n < len(payload) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FrameError{
			Kind: ErrorPartial,
			Msg:  fmt.Sprintf("short payload at offset %d: read %d of %d bytes", ref.Offset, n, ref.Length),
			Err:  err,
		}
	}
	return DecodeRecord(payload)
}

// readPrefix reads and validates a length prefix. A clean end of stream
// before any prefix byte returns io.EOF.
func readPrefix(r io.Reader) (uint32, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, &FrameError{Kind: ErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return 0, &FrameError{
			Kind: ErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}
	return payloadSize, nil
}
