// Package logging builds the zap logger used by the binary and adapts it
// to the projects.Logger interface.
package logging

import (
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	projects "github.com/goliatone/go-projects"
)

// New returns a zap logger writing to w. Production uses JSON at info
// level, everything else a console encoder at debug level.
func New(w io.Writer, production bool) *zap.Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	encoder := zapcore.NewConsoleEncoder(config)
	level := zapcore.DebugLevel
	if production {
		encoder = zapcore.NewJSONEncoder(config)
		level = zapcore.InfoLevel
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	))
}

// Adapter implements projects.Logger on top of a sugared zap logger.
// Arguments after the message are key/value pairs.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ projects.Logger = (*Adapter)(nil)

func NewAdapter(l *zap.Logger) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Adapter{sugar: l.Sugar()}
}

func (a *Adapter) Debug(msg string, args ...any) {
	a.sugar.Debugw(msg, args...)
}

func (a *Adapter) Info(msg string, args ...any) {
	a.sugar.Infow(msg, args...)
}

func (a *Adapter) Warn(msg string, args ...any) {
	a.sugar.Warnw(msg, args...)
}

func (a *Adapter) Error(msg string, args ...any) {
	a.sugar.Errorw(msg, args...)
}
