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
	"sort"
	"strings"

	"github.com/MacroUniverse/pbu/internal/fsutil"
	"github.com/MacroUniverse/pbu/internal/pbulog"
)

// Strategy names the transfer strategy a folder's backup took.
type Strategy string

const (
	StrategyInitialCopy Strategy = "initial-copy"
	StrategyIdentity    Strategy = "identity"
	StrategyPromote     Strategy = "promote"
	StrategyIncremental Strategy = "incremental"
	StrategyNone        Strategy = "" // set when the run stopped before a strategy was chosen
)

// PlanOptions carries the slice of the run configuration the planner needs.
type PlanOptions struct {
	BasePath  string
	Dest      string
	Version   string
	Rules     IgnoreRules
	LazyMode  bool
	LazyCheck bool
	DebugMode bool
	// AutoSavePeriodSeconds is the auto-save checkpoint interval, 0 disables it.
	AutoSavePeriodSeconds int
}

func (o PlanOptions) validateOpts() ValidateOptions {
	return ValidateOptions{
		Rules:          o.Rules,
		LazyMode:       o.LazyMode,
		LazyCheck:      o.LazyCheck,
		DebugMode:      o.DebugMode,
		AutoSavePeriod: o.AutoSavePeriodSeconds,
	}
}

// FolderResult summarizes the outcome of backing up one source folder.
type FolderResult struct {
	Folder      string
	Strategy    Strategy
	NeedsReview bool
	Copied      int
	MovedCount  int
	Counts      Counts
	Message     string
}

// snapshotSetDir is "<dest>/<folder>.pbu".
func snapshotSetDir(dest, folder string) string {
	return filepath.Join(dest, folder+".pbu")
}

func versionDirName(folder, version string) string {
	return folder + ".v" + version
}

// latestSnapshot returns the most recent snapshot version directory name
// under setDir by natural ordering of the ".vXXX" suffix, or "" if none
// exist.
func latestSnapshot(setDir, folder string) (string, error) {
	entries, err := os.ReadDir(setDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &IOError{Path: setDir, Op: "readdir", Err: err}
	}
	prefix := folder + ".v"
	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return "", nil
	}
	sort.Slice(versions, func(i, j int) bool { return LessVersion(versions[i], versions[j]) })
	return versions[len(versions)-1], nil
}

// BackupOne backs up a single source folder (named relative to
// opts.BasePath): validate the source, then take the cheapest applicable
// strategy against the snapshot set — identity if the current version
// already matches, initial copy if no snapshot exists, promotion when the
// source is additive-only over the previous snapshot, and an incremental
// rename-or-copy transfer otherwise.
func BackupOne(folder string, opts PlanOptions) (FolderResult, error) {
	result := FolderResult{Folder: folder}

	src := filepath.Join(opts.BasePath, folder)
	setDir := snapshotSetDir(opts.Dest, folder)
	curName := versionDirName(folder, opts.Version)
	dstCur := filepath.Join(setDir, curName)

	prevName, err := latestSnapshot(setDir, folder)
	if err != nil {
		return result, err
	}
	if prevName != "" && LessVersion(curName, prevName) {
		return result, &VersionDecreasingError{Folder: folder, NewVersion: curName, LatestVersion: prevName}
	}

	// 1. Validate source.
	vr, err := Check(src, opts.validateOpts())
	if err != nil {
		return result, err
	}
	result.Counts = vr.Counts
	if vr.NeedsReview {
		result.NeedsReview = true
		result.Message = "source folder needs review"
		return result, nil
	}

	// 2. Current snapshot already exists?
	if exists(dstCur) {
		vr, err := Check(dstCur, opts.validateOpts())
		if err != nil {
			return result, err
		}
		if vr.NeedsReview {
			result.NeedsReview = true
			result.Message = "current snapshot needs review"
			return result, nil
		}
		srcM, err := ReadManifestFile(filepath.Join(src, ManifestName))
		if err != nil {
			return result, &ManifestMalformedError{Path: src, Err: err}
		}
		curM, err := ReadManifestFile(filepath.Join(dstCur, ManifestName))
		if err != nil {
			return result, &ManifestMalformedError{Path: dstCur, Err: err}
		}
		if EqualModTime(srcM, curM) {
			result.Strategy = StrategyIdentity
			result.Message = "no change"
			return result, nil
		}
		result.NeedsReview = true
		result.Message = "current snapshot diverges from source; use a new version"
		return result, nil
	}

	// 3. No previous snapshot: initial copy.
	if prevName == "" {
		pbulog.Info(pbulog.TagPlan, "%s: no previous snapshot, copying %s -> %s", folder, src, dstCur)
		if err := fsutil.CopyTree(src, dstCur); err != nil {
			return result, err
		}
		result.Strategy = StrategyInitialCopy
		return result, nil
	}

	// 4. Previous snapshot exists, current does not.
	dstPrev := filepath.Join(setDir, prevName)
	vr, err = Check(dstPrev, opts.validateOpts())
	if err != nil {
		return result, err
	}
	if vr.NeedsReview {
		result.NeedsReview = true
		result.Message = "previous snapshot needs review"
		return result, nil
	}

	srcM, err := ReadManifestFile(filepath.Join(src, ManifestName))
	if err != nil {
		return result, &ManifestMalformedError{Path: src, Err: err}
	}
	prevM, err := ReadManifestFile(filepath.Join(dstPrev, ManifestName))
	if err != nil {
		return result, &ManifestMalformedError{Path: dstPrev, Err: err}
	}

	if added, ok := AddOnly(prevM, srcM); ok {
		return promote(folder, src, dstPrev, dstCur, srcM, added, result)
	}

	return incrementalTransfer(folder, src, dstPrev, dstCur, srcM, prevM, opts, result)
}

// promote renames the previous snapshot into the new version and copies
// across any purely-additive files, appending them to the manifest.
func promote(folder, src, dstPrev, dstCur string, srcM *Manifest, added []int, result FolderResult) (FolderResult, error) {
	pbulog.Info(pbulog.TagPlan, "%s: promoting %s -> %s", folder, dstPrev, dstCur)
	if err := os.Rename(dstPrev, dstCur); err != nil {
		if !isCrossDevice(err) {
			return result, &IOError{Path: dstPrev, Op: "rename to " + dstCur, Err: err}
		}
		if err := fsutil.CopyTree(dstPrev, dstCur); err != nil {
			return result, err
		}
		if err := os.RemoveAll(dstPrev); err != nil {
			return result, &IOError{Path: dstPrev, Op: "remove after cross-device promote", Err: err}
		}
	}
	result.Strategy = StrategyPromote

	if len(added) == 0 {
		return result, nil
	}

	curM, err := ReadManifestFile(filepath.Join(dstCur, ManifestName))
	if err != nil {
		return result, &ManifestMalformedError{Path: dstCur, Err: err}
	}
	for _, idx := range added {
		e := srcM.Entries[idx]
		dst := filepath.Join(dstCur, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return result, &IOError{Path: filepath.Dir(dst), Op: "mkdir", Err: err}
		}
		if err := fsutil.CopyFilePreserve(dst, filepath.Join(src, filepath.FromSlash(e.Path))); err != nil {
			return result, err
		}
		curM.Entries = append(curM.Entries, e)
		result.Copied++
	}
	curM.Sort()
	if err := curM.WriteFile(filepath.Join(dstCur, ManifestName)); err != nil {
		return result, err
	}
	return result, nil
}
