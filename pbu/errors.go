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

import "fmt"

// PermissionDeniedError is fatal: reading a source file was denied.
type PermissionDeniedError struct {
	Path string
	Err  error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied reading %s: %v", e.Path, e.Err)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// IOError is fatal: a read/copy/rename/mkdir failed.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ManifestMalformedError is fatal: a manifest could not be parsed.
type ManifestMalformedError struct {
	Path string
	Err  error
}

func (e *ManifestMalformedError) Error() string {
	return fmt.Sprintf("manifest %s is malformed: %v", e.Path, e.Err)
}

func (e *ManifestMalformedError) Unwrap() error { return e.Err }

// VersionDecreasingError is fatal: the new version sorts before the latest
// existing snapshot, which would silently shadow it.
type VersionDecreasingError struct {
	Folder, NewVersion, LatestVersion string
}

func (e *VersionDecreasingError) Error() string {
	return fmt.Sprintf("%s: version %q is not newer than existing version %q",
		e.Folder, e.NewVersion, e.LatestVersion)
}

// NeedsReviewError is non-fatal per folder: the run continues to the next
// folder, but the overall run reports a non-zero exit status.
type NeedsReviewError struct {
	Folder string
	Reason string
}

func (e *NeedsReviewError) Error() string {
	return fmt.Sprintf("%s needs review: %s", e.Folder, e.Reason)
}

// InternalInvariantError is a non-fatal warning: an internal invariant did
// not hold (e.g. an empty residual manifest after an incremental transfer
// that should have been a promotion) but the backup itself is still valid.
type InternalInvariantError struct {
	Folder string
	Detail string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("%s: internal invariant violated: %s", e.Folder, e.Detail)
}
