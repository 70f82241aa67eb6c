// Package logger is a small wrapper around zap used across the node.
// It exposes both a plain zap-style API and a categorized shape
// (InfoC/InfoCF/...) matching how the rest of the codebase tags log
// lines with a subsystem name and optional structured fields.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.Mutex
	log      *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func defaultEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func rebuildLocked() {
	encoder := zapcore.NewConsoleEncoder(defaultEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), logLevel)
	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Init sets the minimum level ("debug", "info", "warn", "error"; anything
// else falls back to "info") and (re)builds the global logger.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(level) {
	case "debug":
		logLevel.SetLevel(zap.DebugLevel)
	case "warn":
		logLevel.SetLevel(zap.WarnLevel)
	case "error":
		logLevel.SetLevel(zap.ErrorLevel)
	default:
		logLevel.SetLevel(zap.InfoLevel)
	}
	rebuildLocked()
}

func instance() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		rebuildLocked()
	}
	return log
}

func fieldsToZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Debug(msg string, fields ...zap.Field) { instance().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { instance().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { instance().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { instance().Error(msg, fields...) }

// Fatal logs at error level and terminates the process; used only on
// unrecoverable startup failures.
func Fatal(msg string, fields ...zap.Field) {
	instance().Error(msg, fields...)
	_ = instance().Sync()
	os.Exit(1)
}

// DebugC/InfoC/WarnC/ErrorC tag a message with a subsystem category
// ("mesh", "directory", "chatstore", "api", ...).
func DebugC(category, msg string) { instance().Debug(msg, zap.String("category", category)) }
func InfoC(category, msg string)  { instance().Info(msg, zap.String("category", category)) }
func WarnC(category, msg string)  { instance().Warn(msg, zap.String("category", category)) }
func ErrorC(category, msg string) { instance().Error(msg, zap.String("category", category)) }

// DebugCF/InfoCF/WarnCF/ErrorCF additionally attach structured fields.
func DebugCF(category, msg string, fields map[string]any) {
	instance().Debug(msg, append([]zap.Field{zap.String("category", category)}, fieldsToZap(fields)...)...)
}

func InfoCF(category, msg string, fields map[string]any) {
	instance().Info(msg, append([]zap.Field{zap.String("category", category)}, fieldsToZap(fields)...)...)
}

func WarnCF(category, msg string, fields map[string]any) {
	instance().Warn(msg, append([]zap.Field{zap.String("category", category)}, fieldsToZap(fields)...)...)
}

func ErrorCF(category, msg string, fields map[string]any) {
	instance().Error(msg, append([]zap.Field{zap.String("category", category)}, fieldsToZap(fields)...)...)
}
