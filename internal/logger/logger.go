// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides a small structured logger on top of log/slog with
// an extra TRACE level below DEBUG, and a choice of text or JSON output.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/kvfs/kvfs/cfg"
)

// Custom levels. slog only defines Debug/Info/Warn/Error; TRACE sits below
// Debug and OFF sits above Error so that nothing at all is emitted.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	levelOff   = slog.Level(math.MaxInt - 1)
)

var severityNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

func severityName(l slog.Level) string {
	if name, ok := severityNames[l]; ok {
		return name
	}
	return l.String()
}

type loggerFactory struct {
	format string
	prefix string
}

var (
	defaultLoggerFactory = &loggerFactory{format: "text"}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

// Init (re)configures the package-level logger according to a fully resolved
// LoggingConfig. It must be called once, early in mount startup.
func Init(c cfg.LoggingConfig) error {
	var w io.Writer = os.Stderr
	if c.Filepath != "" {
		f, err := os.OpenFile(c.Filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("logger: opening log file: %w", err)
		}
		w = f
	}

	defaultLoggerFactory.format = c.Format
	setLoggingLevel(c.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
	return nil
}

func setLoggingLevel(severity string, level *slog.LevelVar) {
	switch severity {
	case cfg.TRACE:
		level.Set(LevelTrace)
	case cfg.DEBUG:
		level.Set(LevelDebug)
	case cfg.INFO:
		level.Set(LevelInfo)
	case cfg.WARNING:
		level.Set(LevelWarn)
	case cfg.ERROR:
		level.Set(LevelError)
	case cfg.OFF:
		level.Set(levelOff)
	}
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &handlerOptions{level: level, prefix: prefix}
	if f.format == "json" {
		return newJSONHandler(w, opts)
	}
	return newTextHandler(w, opts)
}

func logf(level slog.Level, format string, v ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	msg := format
	if len(v) > 0 {
		msg = fmt.Sprintf(format, v...)
	}
	defaultLogger.Log(context.Background(), level, msg)
}

func Tracef(format string, v ...any) { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

// handlerOptions is shared configuration for the text and JSON handlers.
type handlerOptions struct {
	level  *slog.LevelVar
	prefix string
}

// textHandler writes lines of the form:
//
//	time="2006/01/02 15:04:05.000000" severity=INFO message="prefix: msg"
type textHandler struct {
	w    io.Writer
	opts *handlerOptions
}

func newTextHandler(w io.Writer, opts *handlerOptions) *textHandler {
	return &textHandler{w: w, opts: opts}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintf(h.w, "time=%q severity=%s message=%q\n",
		r.Time.Format("2006/01/02 15:04:05.000000"), severityName(r.Level), h.opts.prefix+r.Message)
	return err
}

func (h *textHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(_ string) slog.Handler       { return h }

// jsonHandler writes lines of the form:
//
//	{"timestamp":{"seconds":1700000000,"nanos":123000},"severity":"INFO","message":"prefix: msg"}
type jsonHandler struct {
	w    io.Writer
	opts *handlerOptions
}

func newJSONHandler(w io.Writer, opts *handlerOptions) *jsonHandler {
	return &jsonHandler{w: w, opts: opts}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	_, err := fmt.Fprintf(h.w, "{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}\n",
		r.Time.Unix(), r.Time.Nanosecond(), severityName(r.Level), h.opts.prefix+r.Message)
	return err
}

func (h *jsonHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *jsonHandler) WithGroup(_ string) slog.Handler       { return h }
