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
	"testing"

	"github.com/MacroUniverse/pbu/internal/stringset"
)

func TestScanFolderExcludesControlFilesAndIgnored(t *testing.T) {
	dir := t.TempDir()
	mustMkdirAll(t, filepath.Join(dir, "sub"))
	writeFile(t, dir, "keep.txt", []byte("a"))
	writeFile(t, dir, ManifestName, []byte("x"))
	writeFile(t, dir, "ignore.log", []byte("x"))
	if err := os.WriteFile(filepath.Join(dir, "sub", "keep2.txt"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	rules := IgnoreRules{Extensions: stringset.New(".log")}
	got, err := ScanFolder(dir, rules)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	sort.Strings(got)
	want := []string{"keep.txt", "sub/keep2.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func TestScanFolderExcludesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "target.txt", []byte("a"))
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("cannot create symlink on this host: %v", err)
	}

	got, err := ScanFolder(dir, IgnoreRules{})
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(got) != 1 || got[0] != "target.txt" {
		t.Fatalf("got %v, want only the regular file", got)
	}
}

func TestScanFolderSkipsIgnoredDirectory(t *testing.T) {
	dir := t.TempDir()
	mustMkdirAll(t, filepath.Join(dir, "skipme"))
	if err := os.WriteFile(filepath.Join(dir, "skipme", "inside.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "keep.txt", []byte("a"))

	rules := IgnoreRules{Filenames: stringset.New("skipme")}
	got, err := ScanFolder(dir, rules)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(got) != 1 || got[0] != "keep.txt" {
		t.Fatalf("got %v, want [keep.txt]", got)
	}
}
