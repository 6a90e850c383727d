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

// Package fsutil holds the metadata-preserving copy helpers the snapshot
// planner uses to materialize and extend backup folders.
package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFilePreserve copies src to dest, overwriting dest if it exists and
// preserving src's permission bits and modification time. Symlinks are not
// followed; a symlink source is rejected rather than silently dereferenced,
// matching this project's lack of symlink support.
func CopyFilePreserve(dest, src string) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}
	if srcInfo.Mode()&os.ModeSymlink != 0 {
		return errors.Errorf("refusing to copy symlink %s", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer func() { _ = source.Close() }()

	destination, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}
	defer func() { _ = destination.Close() }()

	if _, err := io.Copy(destination, source); err != nil {
		return errors.Wrapf(err, "copy %s -> %s", src, dest)
	}
	if err := destination.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", dest)
	}
	if err := destination.Close(); err != nil {
		return errors.Wrapf(err, "close %s", dest)
	}
	if err := os.Chtimes(dest, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return errors.Wrapf(err, "chtimes %s", dest)
	}
	return nil
}

// CopyTree recursively copies the regular files and directories under src
// into dest. Symlinks and other non-regular files are skipped silently; the
// planner only copies trees whose manifests already exclude them.
func CopyTree(src, dest string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}
	if err := os.MkdirAll(dest, srcInfo.Mode()); err != nil {
		return errors.Wrapf(err, "mkdir %s", dest)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "readdir %s", src)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		destPath := filepath.Join(dest, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return errors.Wrapf(err, "stat %s", srcPath)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if entry.IsDir() {
			if err := CopyTree(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := CopyFilePreserve(destPath, srcPath); err != nil {
			return err
		}
	}
	return nil
}

// RemoveEmptyDirs walks root bottom-up and removes every directory that
// contains no files, including root itself if it ends up empty. It is used
// after an incremental transfer to prune the previous snapshot of
// directories whose contents were entirely renamed away.
func RemoveEmptyDirs(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "readdir %s", root)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			path := filepath.Join(root, entry.Name())
			if err := RemoveEmptyDirs(path); err != nil {
				return err
			}
		}
	}

	entries, err = os.ReadDir(root)
	if err != nil {
		return errors.Wrapf(err, "readdir %s", root)
	}
	if len(entries) == 0 {
		if err := os.Remove(root); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "rmdir %s", root)
		}
	}
	return nil
}
