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

// Package pbu implements the manifest model, change-detection/diff engine
// and snapshot planner of a versioned, content-addressed incremental folder
// backup tool.
package pbu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Column layout of a manifest line, per the fixed-column format:
//
//	size  0..14   zero-padded decimal byte count (14 chars)
//	sep   14      single space
//	mtime 15..30  YYYYMMDD.HHMMSS (15 chars)
//	sep   30      single space
//	hash  31..71  lowercase hex SHA-1 (40 chars)
//	sep   71      single space
//	path  72..    relative path
const (
	colSizeBeg = 0
	colSizeEnd = 14
	colTimeBeg = 15
	colTimeEnd = 30
	colHashBeg = 31
	colHashEnd = 71
	colPathBeg = 72
	hashHexLen = 40
)

// Manifest is an ordered sequence of entries plus the path it was read from
// or will be written to.
type Manifest struct {
	Path    string
	Entries []Entry
}

// ParseLine parses a single fixed-column manifest line into an Entry.
func ParseLine(line string) (Entry, error) {
	if len(line) < colPathBeg {
		return Entry{}, errors.Errorf("manifest line too short: %q", line)
	}
	if line[colSizeEnd] != ' ' || line[colTimeEnd] != ' ' || line[colHashEnd] != ' ' {
		return Entry{}, errors.Errorf("manifest line malformed columns: %q", line)
	}

	sizeStr := line[colSizeBeg:colSizeEnd]
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid size field %q", sizeStr)
	}

	timeStr := line[colTimeBeg:colTimeEnd]
	mtime, err := time.ParseInLocation(timeLayout, timeStr, time.Local)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid mtime field %q", timeStr)
	}

	hash := line[colHashBeg:colHashEnd]
	if len(hash) != hashHexLen {
		return Entry{}, errors.Errorf("invalid hash field %q", hash)
	}

	path := line[colPathBeg:]
	if path == "" {
		return Entry{}, errors.New("manifest line has empty path")
	}

	return Entry{Size: size, MTime: mtime, Hash: hash, Path: path}, nil
}

// FormatEntry renders an Entry as a fixed-column manifest line (without the
// trailing newline).
func FormatEntry(e Entry) (string, error) {
	if len(e.Hash) != hashHexLen {
		return "", errors.Errorf("entry %q has invalid hash %q", e.Path, e.Hash)
	}
	if e.Path == "" {
		return "", errors.New("entry has empty path")
	}
	if e.Size < 0 {
		return "", errors.Errorf("entry %q has negative size", e.Path)
	}
	return fmt.Sprintf("%014d %s %s %s",
		e.Size, e.MTime.Local().Format(timeLayout), e.Hash, e.Path), nil
}

// ReadManifest reads a manifest from r. Empty trailing lines are dropped.
func ReadManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	// Manifests can list many thousands of files; raise the default 64KiB
	// token limit so long paths don't truncate the scan.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, errors.Wrap(err, "malformed manifest")
		}
		if seen[e.Path] {
			return nil, errors.Errorf("malformed manifest: duplicate path %q", e.Path)
		}
		seen[e.Path] = true
		m.Entries = append(m.Entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}
	return m, nil
}

// ReadManifestFile reads a manifest from the file at path. A missing file is
// not an error: it returns an empty manifest, so a freshly-tracked folder
// reads the same as one with nothing recorded yet.
func ReadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{Path: path}, nil
		}
		return nil, errors.Wrapf(err, "opening manifest %s", path)
	}
	defer func() { _ = f.Close() }()

	m, err := ReadManifest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	m.Path = path
	return m, nil
}

// Sort orders the manifest's entries by (size, hash, path).
func (m *Manifest) Sort() {
	sort.Slice(m.Entries, func(i, j int) bool {
		return lessSortKey(m.Entries[i].sortKey(), m.Entries[j].sortKey())
	})
}

// Write serializes the manifest's entries, in their current order,
// newline-terminated, to w.
func (m *Manifest) Write(w io.Writer) error {
	var b strings.Builder
	for _, e := range m.Entries {
		line, err := FormatEntry(e)
		if err != nil {
			return errors.Wrapf(err, "writing manifest %s", m.Path)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile writes the manifest to a new file at path, truncating any
// existing content.
func (m *Manifest) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating manifest %s", path)
	}
	if err := m.Write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// WriteFileAtomic writes the manifest to a temporary "path-writing" sibling
// and renames it into place, so a reader never observes a partial file. Used
// for auto-save checkpoints.
func (m *Manifest) WriteFileAtomic(path string) error {
	tmp := path + "-writing"
	if err := m.WriteFile(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmp, path)
	}
	return nil
}

// Paths returns the set of relative paths present in the manifest.
func (m *Manifest) Paths() map[string]struct{} {
	set := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		set[e.Path] = struct{}{}
	}
	return set
}
