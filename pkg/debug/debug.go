// Package debug builds the zerolog logger the command line tools run with.
package debug

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// reads the skip count zerolog keeps on the event so the caller hook reports
// the logging call site and not the hook itself
func callerSkipFrameCount(e *zerolog.Event) int {
	v := reflect.ValueOf(e).Elem()
	field := v.FieldByName("skipFrame")

	if field.IsValid() && field.CanAddr() {
		return int(field.Int())
	}

	return 0
}

type TimeHook struct {
	Format string
	Now    func() time.Time
}

func (t TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	format := t.Format
	if format == "" {
		// millisecond precision, no timezone
		format = "2006-01-02T15:04:05.0000Z"
	}
	e.Str("time", now().Format(format))
}

type CallerHook struct {
	WithColor bool
}

func (c CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(callerSkipFrameCount(e) + 3)
	if !ok {
		return
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}

	pkg, _ := PackageAndFunc(fn.Name())

	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// PackageAndFunc splits a runtime function name such as
// "github.com/a/b.(*T).Method" into its package and function parts.
func PackageAndFunc(name string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(name, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}

	firstDot := strings.IndexByte(name[lastSlash:], '.')
	if firstDot < 0 {
		return name, ""
	}
	firstDot += lastSlash

	pkg = name[:firstDot]
	function = name[firstDot+1:]

	if strings.Contains(pkg, ".(") {
		splt := strings.SplitN(pkg, ".(", 2)
		pkg = splt[0]
		function = "(" + splt[1] + "." + function
	}

	return pkg, function
}

func FormatCaller(pkg, path string, number int, colorize bool) string {
	p := FileNameOfPath(path)
	if colorize {
		p = color.New(color.Bold).Sprint(p)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", number)
		sep := color.New(color.Faint).Sprint(":")

		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, p, sep, num)
	}

	return fmt.Sprintf("%s:%s:%d", pkg, p, number)
}

func FileNameOfPath(path string) string {
	tot := strings.Split(path, "/")
	if len(tot) > 1 {
		return tot[len(tot)-1]
	}

	return path
}

// NewLogger returns a logger writing to w. With color the output is a
// console writer meant for a terminal; without it each line is JSON.
func NewLogger(w io.Writer, level zerolog.Level, withColor bool) zerolog.Logger {
	out := w
	if withColor {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).
		Level(level).
		Hook(TimeHook{}).
		Hook(CallerHook{WithColor: withColor})
}

// WithLogger attaches a fresh logger to ctx. verbose lowers the level to
// debug.
func WithLogger(ctx context.Context, w io.Writer, verbose, withColor bool) context.Context {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := NewLogger(w, level, withColor)
	return logger.WithContext(ctx)
}
