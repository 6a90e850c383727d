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
	"testing"
)

// setupFolder writes files (name -> content) under dir and builds its .pbu,
// so the manifest matches the files on disk before a test exercises the
// planner. It writes the manifest directly rather than going through Check,
// which treats a manifest-less folder under a *.pbu parent as a broken
// snapshot.
func setupFolder(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	m, err := Build(dir, BuildOptions{})
	if err != nil {
		t.Fatalf("setupFolder Build(%s): %v", dir, err)
	}
	if err := m.WriteFile(filepath.Join(dir, ManifestName)); err != nil {
		t.Fatalf("setupFolder writing manifest for %s: %v", dir, err)
	}
}

func TestBackupOneS1FirstBackup(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()
	setupFolder(t, filepath.Join(base, "A"), map[string][]byte{"foo.txt": []byte("hello\n")})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "1"}
	result, err := BackupOne("A", opts)
	if err != nil {
		t.Fatalf("BackupOne: %v", err)
	}
	if result.Strategy != StrategyInitialCopy {
		t.Fatalf("strategy = %q, want initial-copy", result.Strategy)
	}

	dstCur := filepath.Join(dest, "A.pbu", "A.v1")
	srcM, err := ReadManifestFile(filepath.Join(base, "A", ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	curM, err := ReadManifestFile(filepath.Join(dstCur, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if !EqualModTime(srcM, curM) {
		t.Fatalf("copied snapshot manifest does not match source: %+v vs %+v", srcM.Entries, curM.Entries)
	}
}

func TestBackupOneS2UnchangedRerun(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()
	setupFolder(t, filepath.Join(base, "A"), map[string][]byte{"foo.txt": []byte("hello\n")})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "1"}
	if _, err := BackupOne("A", opts); err != nil {
		t.Fatalf("first BackupOne: %v", err)
	}

	result, err := BackupOne("A", opts)
	if err != nil {
		t.Fatalf("second BackupOne: %v", err)
	}
	if result.Strategy != StrategyIdentity || result.NeedsReview {
		t.Fatalf("result = %+v, want identity/no-review", result)
	}
}

func TestBackupOneS3AdditivePromotion(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()
	srcDir := filepath.Join(base, "A")
	setupFolder(t, srcDir, map[string][]byte{"foo.txt": []byte("hello\n")})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "1", LazyCheck: true}
	if _, err := BackupOne("A", opts); err != nil {
		t.Fatalf("first BackupOne: %v", err)
	}

	if err := os.WriteFile(filepath.Join(srcDir, "bar.txt"), []byte("world\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts.Version = "2"
	result, err := BackupOne("A", opts)
	if err != nil {
		t.Fatalf("second BackupOne: %v", err)
	}
	if result.Strategy != StrategyPromote {
		t.Fatalf("strategy = %q, want promote", result.Strategy)
	}
	if result.Copied != 1 {
		t.Fatalf("copied = %d, want 1", result.Copied)
	}
	if _, err := os.Stat(filepath.Join(dest, "A.pbu", "A.v1")); !os.IsNotExist(err) {
		t.Fatal("A.v1 should no longer exist after promotion")
	}
	curM, err := ReadManifestFile(filepath.Join(dest, "A.pbu", "A.v2", ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if len(curM.Entries) != 2 {
		t.Fatalf("promoted manifest has %d entries, want 2", len(curM.Entries))
	}
}

func TestBackupOneS5IncrementalWithDeletion(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()

	srcDir := filepath.Join(base, "A")
	setupFolder(t, srcDir, map[string][]byte{
		"a": []byte("A-content"),
		"b": []byte("B-prime-content"),
		"d": []byte("D-content"),
	})

	dstPrev := filepath.Join(dest, "A.pbu", "A.v1")
	setupFolder(t, dstPrev, map[string][]byte{
		"a": []byte("A-content"),
		"b": []byte("B-content"),
		"c": []byte("C-content"),
	})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "2"}
	result, err := BackupOne("A", opts)
	if err != nil {
		t.Fatalf("BackupOne: %v", err)
	}
	if result.Strategy != StrategyIncremental {
		t.Fatalf("strategy = %q, want incremental", result.Strategy)
	}
	if result.MovedCount != 1 {
		t.Fatalf("moved = %d, want 1 (only \"a\" is an identity match)", result.MovedCount)
	}
	if result.Copied != 2 {
		t.Fatalf("copied = %d, want 2 (\"b\" and \"d\")", result.Copied)
	}

	curM, err := ReadManifestFile(filepath.Join(dest, "A.pbu", "A.v2", ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if len(curM.Entries) != 3 {
		t.Fatalf("cur manifest has %d entries, want 3", len(curM.Entries))
	}

	residual, err := ReadManifestFile(filepath.Join(dstPrev, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if len(residual.Entries) != 2 {
		t.Fatalf("residual manifest has %d entries, want 2 (\"b\" and \"c\")", len(residual.Entries))
	}
	if _, err := os.Stat(filepath.Join(dstPrev, ManifestOldName)); err != nil {
		t.Fatalf(".pbu-old should exist in residual snapshot: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstPrev, "c")); err != nil {
		t.Fatalf("\"c\" should remain in the residual snapshot: %v", err)
	}
}

// TestBackupOneIncrementalEmptyResidualKeepsOldManifest covers the case
// where every file in the previous snapshot is matched by content identity
// under a new path (so AddOnly's path-exact comparison can't take the
// promotion shortcut), leaving an empty residual. dstPrev/.pbu must still
// be renamed to .pbu-old and a (possibly empty) residual .pbu written, so
// the recovery artifact survives.
func TestBackupOneIncrementalEmptyResidualKeepsOldManifest(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()

	srcDir := filepath.Join(base, "A")
	setupFolder(t, srcDir, map[string][]byte{
		"renamed.txt": []byte("A-content"),
	})

	dstPrev := filepath.Join(dest, "A.pbu", "A.v1")
	setupFolder(t, dstPrev, map[string][]byte{
		"original.txt": []byte("A-content"),
	})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "2"}
	result, err := BackupOne("A", opts)
	if err != nil {
		t.Fatalf("BackupOne: %v", err)
	}
	if result.Strategy != StrategyIncremental {
		t.Fatalf("strategy = %q, want incremental", result.Strategy)
	}
	if result.MovedCount != 1 {
		t.Fatalf("moved = %d, want 1", result.MovedCount)
	}

	if _, err := os.Stat(filepath.Join(dstPrev, ManifestOldName)); err != nil {
		t.Fatalf(".pbu-old should exist even with an empty residual: %v", err)
	}
	residual, err := ReadManifestFile(filepath.Join(dstPrev, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if len(residual.Entries) != 0 {
		t.Fatalf("residual manifest has %d entries, want 0", len(residual.Entries))
	}
	if _, err := os.Stat(dstPrev); err != nil {
		t.Fatalf("dstPrev directory should survive as a recovery artifact: %v", err)
	}
}

func TestBackupOneVersionDecreasingAborts(t *testing.T) {
	base := t.TempDir()
	dest := t.TempDir()
	setupFolder(t, filepath.Join(base, "A"), map[string][]byte{"foo.txt": []byte("x")})

	opts := PlanOptions{BasePath: base, Dest: dest, Version: "10"}
	if _, err := BackupOne("A", opts); err != nil {
		t.Fatalf("first BackupOne: %v", err)
	}

	opts.Version = "2"
	_, err := BackupOne("A", opts)
	if err == nil {
		t.Fatal("expected VersionDecreasingError")
	}
	if _, ok := err.(*VersionDecreasingError); !ok {
		t.Fatalf("err = %v (%T), want *VersionDecreasingError", err, err)
	}
}
