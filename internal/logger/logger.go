// Package logger builds the process-wide zap logger.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger that writes debug and info entries to stdout and
// warn, error and fatal entries to stderr. Debug entries are only emitted
// when debug is set.
func New(debug bool) *zap.Logger {
	return zap.New(newCore(debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr)))
}

func newCore(debug bool, stdout, stderr zapcore.WriteSyncer) zapcore.Core {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	if debug {
		return zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), stdout, debugInfoLevel),
			zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), stderr, warnErrorFatalLevel),
		)
	}
	return zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), stdout, infoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), stderr, warnErrorFatalLevel),
	)
}
