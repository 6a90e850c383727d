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

import "time"

// timeLayout is the local-time modification stamp format used by manifest
// entries: YYYYMMDD.HHMMSS, truncated to the second.
const timeLayout = "20060102.150405"

// Entry is a single record of a manifest: the size, modification time, SHA-1
// content hash and folder-relative path of one file.
type Entry struct {
	Size  int64
	MTime time.Time // always second-resolution, local time
	Hash  string    // lowercase 40-char hex SHA-1
	Path  string    // forward-slash separated, no leading "./"
}

// sortKey is the triple a manifest is ordered by: (size, hash, path). MTime
// is deliberately excluded so that timestamp drift never reorders entries.
type sortKey struct {
	Size int64
	Hash string
	Path string
}

func (e Entry) sortKey() sortKey {
	return sortKey{Size: e.Size, Hash: e.Hash, Path: e.Path}
}

func lessSortKey(a, b sortKey) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	if a.Hash != b.Hash {
		return a.Hash < b.Hash
	}
	return a.Path < b.Path
}

// IdentityKey is the content identity of a file: (size, hash). Two entries
// sharing an IdentityKey are considered the same content regardless of path.
type IdentityKey struct {
	Size int64
	Hash string
}

// Identity returns the entry's content identity.
func (e Entry) Identity() IdentityKey {
	return IdentityKey{Size: e.Size, Hash: e.Hash}
}

// lazyKey pins a file's identity to the three cheap attributes the builder
// uses to decide whether a previous hash can be reused: size, mtime and
// relative path.
type lazyKey struct {
	Size  int64
	MTime int64 // unix seconds, local wall clock already truncated
	Path  string
}

func (e Entry) lazyKey() lazyKey {
	return lazyKey{Size: e.Size, MTime: e.MTime.Unix(), Path: e.Path}
}
