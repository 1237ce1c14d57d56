// Package logger wraps zap construction for the console and the mock API.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger holds the process logger. Log is a no-op logger until Init is called.
type Logger struct {
	Log *zap.Logger
	out io.Writer
}

// New returns a Logger writing to stderr so log lines never interleave with
// rendered screens on stdout.
func New() *Logger {
	return &Logger{Log: zap.NewNop(), out: os.Stderr}
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{Log: zap.NewNop(), out: w}
}

// Init builds the zap logger at the given level (case-insensitive).
func (l *Logger) Init(level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(l.out),
		zap.NewAtomicLevelAt(lvl),
	)
	l.Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}
