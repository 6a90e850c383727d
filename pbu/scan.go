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
	"strings"

	"github.com/MacroUniverse/pbu/internal/pbulog"
	"github.com/MacroUniverse/pbu/internal/stringset"
)

// controlFiles are the sidecar file names that must never appear in a
// manifest, regardless of user ignore configuration.
var controlFiles = stringset.New(
	ManifestName, ManifestNewName, ManifestDiffName, ManifestOldName,
	AutoSaveName, AutoSaveWritingName, NoRehashMarkerName,
)

// IgnoreRules controls which files the scanner excludes from a folder scan.
type IgnoreRules struct {
	// Filenames is a set of exact basenames to skip.
	Filenames stringset.Set
	// Extensions is a set of filename suffixes to skip.
	Extensions stringset.Set
}

func (r IgnoreRules) skip(name string) bool {
	if controlFiles.Contains(name) {
		return true
	}
	if r.Filenames != nil && r.Filenames.Contains(name) {
		return true
	}
	for ext := range r.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// symlinkWarned records that the symlink warning has been logged in this
// process, so a run emits it at most once across all of its scans.
var symlinkWarned bool

// ScanFolder walks root recursively and returns the relative path (using
// forward slashes) of every regular file, excluding names/extensions in
// rules and symlinks. A single warning is logged per run if any symlinks
// were skipped. Ordering of the returned slice is unspecified.
func ScanFolder(root string, rules IgnoreRules) ([]string, error) {
	var paths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				// Raced with a concurrent delete; skip silently.
				return nil
			}
			return &IOError{Path: path, Op: "walk", Err: err}
		}
		if path == root {
			return nil
		}
		name := info.Name()

		if info.Mode()&os.ModeSymlink != 0 {
			if !symlinkWarned {
				pbulog.Warning(pbulog.TagScan, "symlinks are not supported, ignoring %s (and any further symlinks under %s)", path, root)
				symlinkWarned = true
			}
			return nil
		}
		if info.IsDir() {
			if rules.skip(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if rules.skip(name) {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return &IOError{Path: path, Op: "relpath", Err: err}
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
