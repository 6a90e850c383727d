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
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/MacroUniverse/pbu/internal/fsutil"
	"github.com/MacroUniverse/pbu/internal/pbulog"
)

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}

// incrementalTransfer matches srcM against prevM by content identity
// (size, hash). Matched files are renamed out of dstPrev into dstCur;
// everything else is freshly copied from src. Whatever in dstPrev goes
// unmatched is left behind as a residual snapshot, its old manifest
// preserved as .pbu-old.
func incrementalTransfer(folder, src, dstPrev, dstCur string, srcM, prevM *Manifest, opts PlanOptions, result FolderResult) (FolderResult, error) {
	pbulog.Info(pbulog.TagTransfer, "%s: incremental transfer %s -> %s", folder, dstPrev, dstCur)

	if err := os.MkdirAll(dstCur, 0755); err != nil {
		return result, &IOError{Path: dstCur, Op: "mkdir", Err: err}
	}

	byIdentity := make(map[IdentityKey][]int)
	for idx, e := range prevM.Entries {
		k := e.Identity()
		byIdentity[k] = append(byIdentity[k], idx)
	}
	used := make([]bool, len(prevM.Entries))

	curEntries := make([]Entry, 0, len(srcM.Entries))
	for _, se := range srcM.Entries {
		k := se.Identity()
		idx := -1
		for _, cand := range byIdentity[k] {
			if !used[cand] {
				idx = cand
				break
			}
		}

		dst := filepath.Join(dstCur, filepath.FromSlash(se.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return result, &IOError{Path: filepath.Dir(dst), Op: "mkdir", Err: err}
		}

		if idx >= 0 {
			used[idx] = true
			pe := prevM.Entries[idx]
			oldPath := filepath.Join(dstPrev, filepath.FromSlash(pe.Path))
			pbulog.Verbose(pbulog.TagTransfer, "%s: rename %s -> %s", folder, pe.Path, se.Path)
			if err := renameOrCopy(oldPath, dst); err != nil {
				return result, &IOError{Path: oldPath, Op: "rename to " + dst, Err: err}
			}
			result.MovedCount++
			// The snapshot records the file's original timestamp, not the
			// source's: identical content re-taken from a new scan still
			// carries the mtime it had when it first entered a snapshot.
			curEntries = append(curEntries, Entry{Size: se.Size, MTime: pe.MTime, Hash: se.Hash, Path: se.Path})
			continue
		}

		pbulog.Verbose(pbulog.TagTransfer, "%s: copy %s", folder, se.Path)
		if err := fsutil.CopyFilePreserve(dst, filepath.Join(src, filepath.FromSlash(se.Path))); err != nil {
			return result, err
		}
		result.Copied++
		curEntries = append(curEntries, se)
	}

	curM := &Manifest{Entries: curEntries}
	curM.Sort()
	if err := curM.WriteFile(filepath.Join(dstCur, ManifestName)); err != nil {
		return result, err
	}
	result.Strategy = StrategyIncremental

	var residual []Entry
	for idx, u := range used {
		if !u {
			residual = append(residual, prevM.Entries[idx])
		}
	}

	if len(residual) == 0 {
		pbulog.Warning(pbulog.TagTransfer, "%s: %v", folder,
			&InternalInvariantError{Folder: folder, Detail: "incremental transfer consumed all of the previous snapshot; an add-only promotion should have been taken instead"})
	}

	oldManifestPath := filepath.Join(dstPrev, ManifestOldName)
	if err := os.Rename(filepath.Join(dstPrev, ManifestName), oldManifestPath); err != nil {
		return result, &IOError{Path: filepath.Join(dstPrev, ManifestName), Op: "rename to old", Err: err}
	}
	residualM := &Manifest{Entries: residual}
	residualM.Sort()
	if err := residualM.WriteFile(filepath.Join(dstPrev, ManifestName)); err != nil {
		return result, err
	}
	if err := fsutil.RemoveEmptyDirs(dstPrev); err != nil {
		return result, err
	}

	if opts.DebugMode {
		vr, err := Check(dstPrev, opts.validateOpts())
		if err != nil {
			return result, err
		}
		if vr.NeedsReview {
			result.NeedsReview = true
			result.Message = "residual snapshot manifest does not match its contents; rerun needed"
		}
	}

	return result, nil
}

// renameOrCopy renames src to dst, falling back to a copy-then-unlink when
// the rename fails because the two paths are on different filesystems. The
// incremental and promotion strategies still complete correctly in that
// case; they simply lose the zero-copy advantage.
func renameOrCopy(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if err := fsutil.CopyFilePreserve(dst, src); err != nil {
		return err
	}
	return os.Remove(src)
}
