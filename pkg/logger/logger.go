// Package logger provides the process-wide structured logger used by every
// PDP component. It wraps log/slog behind a small facade so call sites
// never import slog directly, and exposes a logr.Logger adapter for
// components (such as third-party HTTP/JWKS clients) that expect that
// interface.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// EnvReader abstracts environment variable lookup so Initialize's behavior
// can be exercised without mutating the real process environment.
type EnvReader interface {
	Getenv(key string) string
}

type osEnvReader struct{}

func (osEnvReader) Getenv(key string) string { return os.Getenv(key) }

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newLogger(true))
}

// unstructuredLogsEnvVar toggles between a human-friendly text handler
// (the default, matching local/CLI usage) and a JSON handler (suited to
// log aggregation in server deployments).
const unstructuredLogsEnvVar = "UNSTRUCTURED_LOGS"

func unstructuredLogsWithEnv(env EnvReader) bool {
	v := env.Getenv(unstructuredLogsEnvVar)
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func newLogger(unstructured bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}

	var handler slog.Handler
	if unstructured {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Initialize (re)configures the singleton logger from the real process
// environment. Safe to call more than once.
func Initialize() {
	InitializeWithEnv(osEnvReader{})
}

// InitializeWithEnv (re)configures the singleton logger from env.
func InitializeWithEnv(env EnvReader) {
	singleton.Store(newLogger(unstructuredLogsWithEnv(env)))
}

// Get returns the current process-wide logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// NewLogr adapts the current singleton to a logr.Logger, for components
// (e.g. jwx/httprc) that accept that interface rather than slog's.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(Get().Handler())
}

func Debug(args ...any)                   { Get().Debug(fmt.Sprint(args...)) }
func Debugf(format string, args ...any)   { Get().Debug(fmt.Sprintf(format, args...)) }
func Debugw(msg string, kv ...any)        { Get().Debug(msg, kv...) }
func Info(args ...any)                    { Get().Info(fmt.Sprint(args...)) }
func Infof(format string, args ...any)    { Get().Info(fmt.Sprintf(format, args...)) }
func Infow(msg string, kv ...any)         { Get().Info(msg, kv...) }
func Warn(args ...any)                    { Get().Warn(fmt.Sprint(args...)) }
func Warnf(format string, args ...any)    { Get().Warn(fmt.Sprintf(format, args...)) }
func Warnw(msg string, kv ...any)         { Get().Warn(msg, kv...) }
func Error(args ...any)                   { Get().Error(fmt.Sprint(args...)) }
func Errorf(format string, args ...any)   { Get().Error(fmt.Sprintf(format, args...)) }
func Errorw(msg string, kv ...any)        { Get().Error(msg, kv...) }

// DPanic logs at error level without panicking; slog has no dev/prod build
// distinction to gate an actual panic on, unlike the leveled loggers this
// vocabulary originally came from.
func DPanic(args ...any)                 { Get().Error(fmt.Sprint(args...)) }
func DPanicf(format string, args ...any) { Get().Error(fmt.Sprintf(format, args...)) }
func DPanicw(msg string, kv ...any)      { Get().Error(msg, kv...) }

func Panic(args ...any) {
	msg := fmt.Sprint(args...)
	Get().Error(msg)
	panic(msg)
}

func Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Get().Error(msg)
	panic(msg)
}

func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}
