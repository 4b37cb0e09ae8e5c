// Package log provides structured logging with transfer context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the transfer engine (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces (convenience over performance)
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/canisnap/types"
)

// Logger provides structured logging with transfer context.
// Every entry carries transfer_id, operation, canister_id and, once known,
// snapshot_id.
type Logger struct {
	zap   *zap.Logger
	meta  types.TransferMeta
	w     io.Writer
	level zapcore.Level
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new logger with transfer context.
// Output defaults to os.Stderr at info level.
func NewLogger(meta *types.TransferMeta) *Logger {
	var m types.TransferMeta
	if meta != nil {
		m = *meta
	}
	return build(m, os.Stderr, zapcore.InfoLevel)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), w: io.Discard, level: zapcore.InfoLevel}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return build(l.meta, w, l.level)
}

// WithLevel returns a new logger that drops entries below level.
func (l *Logger) WithLevel(level zapcore.Level) *Logger {
	return build(l.meta, l.w, level)
}

// WithSnapshotID returns a new logger whose entries carry id. Uploads learn
// the target id only after the metadata write.
func (l *Logger) WithSnapshotID(id types.SnapshotID) *Logger {
	meta := l.meta
	meta.SnapshotID = id
	return build(meta, l.w, l.level)
}

func build(meta types.TransferMeta, w io.Writer, level zapcore.Level) *Logger {
	if w == io.Discard {
		return &Logger{zap: zap.NewNop(), meta: meta, w: w, level: level}
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	var contextFields []zap.Field
	if meta.TransferID != "" {
		contextFields = append(contextFields, zap.String("transfer_id", meta.TransferID))
	}
	if meta.Operation != "" {
		contextFields = append(contextFields, zap.String("operation", string(meta.Operation)))
	}
	if meta.CanisterID != "" {
		contextFields = append(contextFields, zap.String("canister_id", meta.CanisterID))
	}
	if !meta.SnapshotID.IsZero() {
		contextFields = append(contextFields, zap.String("snapshot_id", meta.SnapshotID.String()))
	}

	return &Logger{
		zap:   zap.New(core).With(contextFields...),
		meta:  meta,
		w:     w,
		level: level,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
