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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MacroUniverse/pbu/internal/pbulog"
)

// ValidateOptions configures a folder validation pass.
type ValidateOptions struct {
	Rules          IgnoreRules
	LazyMode       bool
	LazyCheck      bool
	DebugMode      bool
	AutoSavePeriod int // seconds; 0 disables auto-save
}

// ValidateResult reports the outcome of Check.
type ValidateResult struct {
	// NeedsReview is true if the folder cannot participate in backup
	// until a human or the lazy-check policy resolves it.
	NeedsReview bool
	// Renamed is set when a lost snapshot manifest caused the folder to be
	// renamed to "<name>.broken".
	Renamed bool
	// Promoted is set when a lazy-check auto-promotion replaced .pbu.
	Promoted bool
	// Counts is populated when a diff against a changed folder was computed.
	Counts Counts
}

// Check decides whether folder matches its manifest, revalidating (full
// rehash or lazy recheck) as needed, and returns whether the folder needs
// human review before it can participate in a backup run. A pending
// .pbu-new short-circuits; a missing or empty .pbu is treated as a folder
// being tracked for the first time, except that a snapshot folder (parent
// named *.pbu) with no .pbu is renamed to "<name>.broken" and flagged for
// review; the pbu-norehash trust marker skips revalidation once.
func Check(folder string, opts ValidateOptions) (ValidateResult, error) {
	manifestPath := filepath.Join(folder, ManifestName)
	newPath := filepath.Join(folder, ManifestNewName)
	markerPath := filepath.Join(folder, NoRehashMarkerName)

	if exists(newPath) {
		pbulog.Info(pbulog.TagValidate, "%s: pending review (%s exists)", folder, ManifestNewName)
		return ValidateResult{NeedsReview: true}, nil
	}

	info, err := os.Stat(manifestPath)
	switch {
	case os.IsNotExist(err):
		return checkMissingManifest(folder, opts)
	case err != nil:
		return ValidateResult{}, classifyOpenErr(manifestPath, err)
	case info.Size() == 0:
		m, err := Build(folder, buildOptsFor(folder, opts, nil, nil))
		if err != nil {
			return ValidateResult{}, err
		}
		if err := m.WriteFile(manifestPath); err != nil {
			return ValidateResult{}, err
		}
		return ValidateResult{}, nil
	}

	if exists(markerPath) {
		pbulog.Info(pbulog.TagValidate, "%s: trust marker present, skipping revalidation", folder)
		if !opts.DebugMode {
			if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
				return ValidateResult{}, &IOError{Path: markerPath, Op: "remove", Err: err}
			}
		}
		return ValidateResult{}, nil
	}

	return revalidate(folder, opts, manifestPath, newPath)
}

// checkMissingManifest handles a folder with no .pbu: a snapshot folder
// that lost its manifest is quarantined as "<name>.broken", anything else
// is a fresh source folder.
func checkMissingManifest(folder string, opts ValidateOptions) (ValidateResult, error) {
	parent := filepath.Dir(folder)
	if strings.HasSuffix(filepath.Base(parent), ".pbu") {
		// This is a snapshot folder whose manifest was lost.
		broken := folder + ".broken"
		if err := os.Rename(folder, broken); err != nil {
			return ValidateResult{}, &IOError{Path: folder, Op: "rename to broken", Err: err}
		}
		pbulog.Warning(pbulog.TagValidate, "%s: manifest missing, renamed to %s", folder, broken)
		m, err := Build(broken, buildOptsFor(broken, opts, nil, nil))
		if err != nil {
			return ValidateResult{}, err
		}
		if err := m.WriteFile(filepath.Join(broken, ManifestNewName)); err != nil {
			return ValidateResult{}, err
		}
		return ValidateResult{NeedsReview: true, Renamed: true}, nil
	}

	// Fresh source folder.
	m, err := Build(folder, buildOptsFor(folder, opts, nil, nil))
	if err != nil {
		return ValidateResult{}, err
	}
	if err := m.WriteFile(filepath.Join(folder, ManifestName)); err != nil {
		return ValidateResult{}, err
	}
	return ValidateResult{}, nil
}

// revalidate rebuilds the folder's manifest and compares it against the
// existing one, writing the review artifacts on divergence.
func revalidate(folder string, opts ValidateOptions, manifestPath, newPath string) (ValidateResult, error) {
	prior, err := ReadManifestFile(manifestPath)
	if err != nil {
		return ValidateResult{}, &ManifestMalformedError{Path: manifestPath, Err: err}
	}

	asvPath := filepath.Join(folder, AutoSaveName)
	asvWritingPath := filepath.Join(folder, AutoSaveWritingName)
	var asv *Manifest
	if opts.LazyMode {
		if exists(asvPath) {
			asv, err = ReadManifestFile(asvPath)
			if err != nil {
				return ValidateResult{}, &ManifestMalformedError{Path: asvPath, Err: err}
			}
		}
	}

	rebuilt, err := Build(folder, buildOptsFor(folder, opts, prior, asv))
	if err != nil {
		return ValidateResult{}, err
	}

	// The rebuild succeeded, so any checkpoint is stale.
	_ = os.Remove(asvPath)
	_ = os.Remove(asvWritingPath)

	if EqualModTime(prior, rebuilt) {
		// Timestamps may have shifted; rewrite to keep mtime fresh.
		if err := rebuilt.WriteFile(manifestPath); err != nil {
			return ValidateResult{}, err
		}
		return ValidateResult{}, nil
	}

	if err := rebuilt.WriteFile(newPath); err != nil {
		return ValidateResult{}, err
	}
	events, counts := Diff(prior, rebuilt)
	diffPath := filepath.Join(folder, ManifestDiffName)
	if err := writeDiffReport(diffPath, events); err != nil {
		return ValidateResult{}, err
	}
	pbulog.Info(pbulog.TagValidate, "%s: changed (deleted=%d changed=%d new=%d moved=%d)",
		folder, counts.Deleted, counts.Changed, counts.New, counts.Moved)
	fmt.Printf("%s: review %s, and if everything is ok replace %s with %s, delete %s, and add %s\n",
		folder, ManifestDiffName, ManifestName, ManifestNewName, ManifestDiffName, NoRehashMarkerName)
	fmt.Printf("%s: for a more human readable diff, try: git diff --no-index --word-diff %s %s\n",
		folder, filepath.Join(folder, ManifestName), filepath.Join(folder, ManifestNewName))

	result := ValidateResult{NeedsReview: true, Counts: counts}
	if opts.LazyCheck && counts.Deleted == 0 && counts.Changed == 0 {
		oldPath := filepath.Join(folder, ManifestOldName)
		if err := os.Rename(manifestPath, oldPath); err != nil {
			return ValidateResult{}, &IOError{Path: manifestPath, Op: "rename to old", Err: err}
		}
		if err := os.Rename(newPath, manifestPath); err != nil {
			return ValidateResult{}, &IOError{Path: newPath, Op: "promote", Err: err}
		}
		pbulog.Info(pbulog.TagValidate, "%s: auto-promoted (additions/moves only)", folder)
		result.Promoted = true
		result.NeedsReview = false
	}
	return result, nil
}

func buildOptsFor(folder string, opts ValidateOptions, prior, asv *Manifest) BuildOptions {
	b := BuildOptions{
		Rules:    opts.Rules,
		Prior:    prior,
		AutoSave: asv,
		LazyMode: opts.LazyMode && prior != nil,
	}
	if opts.AutoSavePeriod > 0 {
		b.AutoSavePeriod = secondsToDuration(opts.AutoSavePeriod)
		b.AutoSavePath = filepath.Join(folder, AutoSaveName)
	}
	return b
}

func writeDiffReport(path string, events []Event) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &IOError{Path: path, Op: "create", Err: err}
	}
	defer func() { _ = f.Close() }()

	for _, e := range events {
		var line string
		switch e.Kind {
		case EventDeleted:
			line = fmt.Sprintf("[deleted] %s", mustFormat(e.Old))
		case EventNew:
			line = fmt.Sprintf("[new]     %s", mustFormat(e.New))
		case EventMoved:
			line = fmt.Sprintf("[moved]   %s -> %s", mustFormat(e.Old), e.New.Path)
		case EventChanged:
			line = fmt.Sprintf("[changed] %s", mustFormat(e.New))
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return &IOError{Path: path, Op: "write", Err: err}
		}
	}
	return nil
}

func mustFormat(e Entry) string {
	line, err := FormatEntry(e)
	if err != nil {
		return e.Path
	}
	return line
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
