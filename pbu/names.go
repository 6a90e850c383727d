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

// Sidecar file names. The .pbu manifest is the authoritative record of a
// folder; the rest are review, supersession and checkpoint artifacts.
const (
	ManifestName        = ".pbu"
	ManifestNewName     = ".pbu-new"
	ManifestDiffName    = ".pbu-diff"
	ManifestOldName     = ".pbu-old"
	AutoSaveName        = ".pbu-new-asv"
	AutoSaveWritingName = ".pbu-new-asv-writing"
	NoRehashMarkerName  = "pbu-norehash"
)
