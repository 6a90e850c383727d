// Copyright © 2024 The pbu Authors
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

package pbulog

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withCapturedOutput redirects the stdlib logger used by pbulog to buf for
// the duration of the test and restores it afterward.
func withCapturedOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestSetLevelGatesLowerSeverity(t *testing.T) {
	buf := withCapturedOutput(t)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarning)
	lastLine = ""
	repeatN = 0

	Debug(TagScan, "should not appear")
	Info(TagScan, "should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below the configured level, got %q", buf.String())
	}

	Warning(TagScan, "this should appear")
	if !strings.Contains(buf.String(), "this should appear") {
		t.Fatalf("expected warning to be emitted, got %q", buf.String())
	}
}

func TestErrorAlwaysEmitsRegardlessOfLevel(t *testing.T) {
	buf := withCapturedOutput(t)
	defer SetLevel(LevelInfo)

	SetLevel(LevelError)
	lastLine = ""
	repeatN = 0

	Error(TagCLI, "boom")
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error line to be emitted, got %q", buf.String())
	}
}

func TestRepeatedLinesCollapseUntilNextDistinctLine(t *testing.T) {
	buf := withCapturedOutput(t)
	defer SetLevel(LevelInfo)

	SetLevel(LevelInfo)
	lastLine = ""
	repeatN = 0

	Info(TagHash, "hashing %s", "a.txt")
	Info(TagHash, "hashing %s", "a.txt")
	Info(TagHash, "hashing %s", "a.txt")
	Info(TagHash, "hashing %s", "b.txt")

	out := buf.String()
	if strings.Count(out, "hashing a.txt") != 1 {
		t.Fatalf("expected repeated line to be printed only once, got %q", out)
	}
	if !strings.Contains(out, "repeated 2 more times") {
		t.Fatalf("expected a repeat-count summary line, got %q", out)
	}
	if !strings.Contains(out, "hashing b.txt") {
		t.Fatalf("expected the distinct follow-up line to be printed, got %q", out)
	}
}

func TestVerboseNeverCollapsesRepeats(t *testing.T) {
	buf := withCapturedOutput(t)
	defer SetLevel(LevelInfo)

	SetLevel(LevelVerbose)
	lastLine = ""
	repeatN = 0

	Verbose(TagScan, "walking %s", "x")
	Verbose(TagScan, "walking %s", "x")

	if strings.Count(buf.String(), "walking x") != 2 {
		t.Fatalf("expected verbose lines to print every time, got %q", buf.String())
	}
}

func TestSetOutputFileWritesToFile(t *testing.T) {
	prevOut := log.Writer()
	defer log.SetOutput(prevOut)

	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	f, err := SetOutputFile(path)
	if err != nil {
		t.Fatalf("SetOutputFile: %v", err)
	}

	lastLine = ""
	repeatN = 0
	SetLevel(LevelInfo)
	Info(TagCLI, "hello from the log file")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from the log file") {
		t.Fatalf("log file content = %q, missing expected line", data)
	}
	if f == nil {
		t.Fatal("expected a non-nil file handle")
	}
}
