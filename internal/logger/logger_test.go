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

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/kvfs/kvfs/cfg"
)

func redirectLogsToGivenBuffer(buf *bytes.Buffer, severity string) {
	level := new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, level, "test: "))
	setLoggingLevel(severity, level)
}

func emitOneOfEachSeverity() []func() {
	return []func(){
		func() { Tracef("trace %s", "msg") },
		func() { Debugf("debug %s", "msg") },
		func() { Infof("info %s", "msg") },
		func() { Warnf("warn %s", "msg") },
		func() { Errorf("error %s", "msg") },
	}
}

func captureOutputPerSeverity(severity string) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, severity)

	var out []string
	for _, emit := range emitOneOfEachSeverity() {
		emit()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestTextFormat_FiltersBySeverity(t *testing.T) {
	defaultLoggerFactory.format = "text"

	cases := []struct {
		severity string
		want     []bool // whether trace/debug/info/warn/error lines should be non-empty
	}{
		{cfg.OFF, []bool{false, false, false, false, false}},
		{cfg.ERROR, []bool{false, false, false, false, true}},
		{cfg.WARNING, []bool{false, false, false, true, true}},
		{cfg.INFO, []bool{false, false, true, true, true}},
		{cfg.DEBUG, []bool{false, true, true, true, true}},
		{cfg.TRACE, []bool{true, true, true, true, true}},
	}

	for _, c := range cases {
		out := captureOutputPerSeverity(c.severity)
		for i, wantNonEmpty := range c.want {
			gotNonEmpty := out[i] != ""
			if gotNonEmpty != wantNonEmpty {
				t.Errorf("severity=%s line=%d: got non-empty=%v want=%v (line=%q)", c.severity, i, gotNonEmpty, wantNonEmpty, out[i])
			}
		}
	}
}

func TestTextFormat_LineShape(t *testing.T) {
	defaultLoggerFactory.format = "text"
	out := captureOutputPerSeverity(cfg.TRACE)

	re := regexp.MustCompile(`^time="[0-9/: .]{26}" severity=TRACE message="test: trace msg"\n$`)
	if !re.MatchString(out[0]) {
		t.Errorf("unexpected text line shape: %q", out[0])
	}
}

func TestJSONFormat_LineShape(t *testing.T) {
	defaultLoggerFactory.format = "json"
	out := captureOutputPerSeverity(cfg.TRACE)

	re := regexp.MustCompile(`^\{"timestamp":\{"seconds":\d+,"nanos":\d+\},"severity":"TRACE","message":"test: trace msg"\}\n$`)
	if !re.MatchString(out[0]) {
		t.Errorf("unexpected json line shape: %q", out[0])
	}
}

func TestSetLoggingLevel(t *testing.T) {
	cases := []struct {
		severity string
		want     slog.Level
	}{
		{cfg.TRACE, LevelTrace},
		{cfg.DEBUG, LevelDebug},
		{cfg.INFO, LevelInfo},
		{cfg.WARNING, LevelWarn},
		{cfg.ERROR, LevelError},
	}

	for _, c := range cases {
		level := new(slog.LevelVar)
		setLoggingLevel(c.severity, level)
		if level.Level() != c.want {
			t.Errorf("setLoggingLevel(%s): got %v want %v", c.severity, level.Level(), c.want)
		}
	}
}
