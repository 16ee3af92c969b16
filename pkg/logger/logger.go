// Package logger is the logging facade shared by ez-admin services.
//
// It wraps logrus' standard logger and is meant to be imported as `log`, so
// every package writes through the single backend configured by
// pkg/bootstrap.InitLogger.
package logger

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

type Fields = log.Fields
type Entry = log.Entry
type Logger = log.Logger
type Level = log.Level
type Hook = log.Hook

var AllLevels = log.AllLevels

const (
	ErrorLevel = log.ErrorLevel
	WarnLevel  = log.WarnLevel
	InfoLevel  = log.InfoLevel
	DebugLevel = log.DebugLevel
)

func StandardLogger() *Logger                { return log.StandardLogger() }
func SetLevel(level Level)                   { log.SetLevel(level) }
func GetLevel() Level                        { return log.GetLevel() }
func ParseLevel(level string) (Level, error) { return log.ParseLevel(level) }
func SetOutput(out io.Writer)                { log.SetOutput(out) }
func AddHook(h Hook)                         { log.AddHook(h) }

func WithField(key string, value any) *Entry { return log.WithField(key, value) }
func WithFields(fields Fields) *Entry        { return log.WithFields(fields) }
func WithError(err error) *Entry             { return log.WithError(err) }

// WithTrace binds ctx and adds "trace_id" when an OpenTelemetry span is
// present and "request_id" when the request carried one.
func WithTrace(ctx context.Context) *Entry {
	if ctx == nil {
		return log.NewEntry(log.StandardLogger())
	}
	e := log.WithContext(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.WithField("trace_id", sc.TraceID().String())
	}
	if id := tracing.RequestIDFrom(ctx); id != "" {
		e = e.WithField("request_id", id)
	}
	return e
}

// FieldAlert marks entries that should page the on-call channel.
const FieldAlert = "alert"

// Alert is WithTrace plus the alert marker.
func Alert(ctx context.Context) *Entry {
	return WithTrace(ctx).WithField(FieldAlert, true)
}

func Debug(args ...any) { log.Debug(args...) }
func Info(args ...any)  { log.Info(args...) }
func Warn(args ...any)  { log.Warn(args...) }
func Error(args ...any) { log.Error(args...) }
func Fatal(args ...any) { log.Fatal(args...) }

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
