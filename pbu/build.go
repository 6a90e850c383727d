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

package pbu

import (
	"os"
	"path/filepath"
	"time"

	"github.com/MacroUniverse/pbu/internal/pbulog"
)

// BuildOptions configures a single manifest build.
type BuildOptions struct {
	// Rules selects which files the scanner skips.
	Rules IgnoreRules
	// Prior, if non-nil, is consulted for hash reuse when LazyMode is set.
	Prior *Manifest
	// AutoSave, if non-nil, is additionally consulted for hash reuse (it
	// holds entries hashed since Prior was last written, e.g. from an
	// interrupted previous build).
	AutoSave *Manifest
	// LazyMode reuses a prior hash when (size, mtime, path) all match.
	LazyMode bool
	// AutoSavePeriod, if positive, is the interval at which in-progress
	// entries are atomically checkpointed to AutoSavePath.
	AutoSavePeriod time.Duration
	// AutoSavePath is where checkpoints are written; required if
	// AutoSavePeriod is positive.
	AutoSavePath string
}

// now is overridable in tests.
var now = time.Now

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Build scans folder and produces a sorted Manifest, reusing hashes from
// opts.Prior/opts.AutoSave when lazy mode applies and a file's (size, mtime,
// path) are unchanged. Files that vanish between scan and stat are skipped
// silently, matching a benign race with a concurrent deleter.
func Build(folder string, opts BuildOptions) (*Manifest, error) {
	paths, err := ScanFolder(folder, opts.Rules)
	if err != nil {
		return nil, err
	}

	lookup := make(map[lazyKey]string)
	if opts.LazyMode {
		addLookup(lookup, opts.Prior)
		addLookup(lookup, opts.AutoSave)
	}

	m := &Manifest{}
	nextAutoSave := now().Add(opts.AutoSavePeriod)

	total := len(paths)
	for idx, rel := range paths {
		full := filepath.Join(folder, rel)
		info, err := os.Lstat(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted between scan and stat
			}
			return nil, classifyOpenErr(full, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		size := info.Size()
		mtime := info.ModTime().Truncate(time.Second)

		var hash string
		key := lazyKey{Size: size, MTime: mtime.Unix(), Path: rel}
		if opts.LazyMode {
			if h, ok := lookup[key]; ok {
				hash = h
			}
		}
		if hash == "" {
			pbulog.Debug(pbulog.TagHash, "[%d/%d] hashing %s", idx+1, total, rel)
			hash, err = HashFile(full)
			if err != nil {
				return nil, err
			}
		} else {
			pbulog.Verbose(pbulog.TagHash, "[%d/%d] reused hash for %s", idx+1, total, rel)
		}

		m.Entries = append(m.Entries, Entry{Size: size, MTime: mtime, Hash: hash, Path: rel})

		if opts.AutoSavePeriod > 0 && opts.AutoSavePath != "" && now().After(nextAutoSave) {
			snapshot := &Manifest{Entries: append([]Entry(nil), m.Entries...)}
			snapshot.Sort()
			if err := snapshot.WriteFileAtomic(opts.AutoSavePath); err != nil {
				return nil, err
			}
			nextAutoSave = now().Add(opts.AutoSavePeriod)
		}
	}

	m.Sort()
	return m, nil
}

func addLookup(lookup map[lazyKey]string, m *Manifest) {
	if m == nil {
		return
	}
	for _, e := range m.Entries {
		lookup[e.lazyKey()] = e.Hash
	}
}

