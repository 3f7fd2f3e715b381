package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

var (
	level   = new(slog.LevelVar)
	Default = slog.New(newHandler(os.Stdout))
)

func init() {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "":
	case "ERROR":
		SetLevel(slog.LevelError)
	case "WARN":
		SetLevel(slog.LevelWarn)
	case "INFO":
		SetLevel(slog.LevelInfo)
	case "DEBUG":
		SetLevel(slog.LevelDebug)
	default:
		fmt.Printf("Unknown log level: %s != [ERROR,WARN,INFO,DEBUG]\n", os.Getenv("LOG_LEVEL"))
	}
}

// newHandler returns a colored handler when w is a terminal and a JSON handler otherwise.
func newHandler(w io.Writer) slog.Handler {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// SetOutput redirects all log output to w.  Used by tests to capture logs.
func SetOutput(w io.Writer) {
	Default = slog.New(newHandler(w))
}

func SetLevel(lvl slog.Level) { level.Set(lvl) }

func IsDebug() bool { return Default.Enabled(context.Background(), slog.LevelDebug) }
func IsInfo() bool  { return Default.Enabled(context.Background(), slog.LevelInfo) }
func IsWarn() bool  { return Default.Enabled(context.Background(), slog.LevelWarn) }

func Debug(msg string, args ...any) { Default.Debug(msg, args...) }
func Info(msg string, args ...any)  { Default.Info(msg, args...) }
func Warn(msg string, args ...any)  { Default.Warn(msg, args...) }
func Error(msg string, args ...any) { Default.Error(msg, args...) }

func Debugf(format string, args ...any) {
	if !IsDebug() {
		return
	}
	Default.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	if !IsInfo() {
		return
	}
	Default.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	if !IsWarn() {
		return
	}
	Default.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	Default.Error(fmt.Sprintf(format, args...))
}

func Fatal(msg string, args ...any) {
	Default.Error(msg, args...)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	Default.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Since logs the elapsed time of an operation at debug level.  Use with defer.
func Since(op string, start time.Time) {
	Debugf("%s took %s", op, time.Since(start))
}
