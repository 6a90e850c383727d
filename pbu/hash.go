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
	"crypto/sha1" //nolint:gosec // content-addressing hash, not a security boundary
	"encoding/hex"
	"io"
	"os"
)

// streamBufferSize is both the single-read cutoff and the buffer size used
// when streaming larger files through the hash.
const streamBufferSize = 1 << 20 // 1 MiB

// HashFile computes the lowercase hex SHA-1 of the file at path. Files of
// size <= 1 MiB are read in a single call; larger files are streamed through
// a 1 MiB buffer. Never returns a partial hash: any read error is returned
// and the digest is discarded.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", classifyOpenErr(path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", classifyOpenErr(path, err)
	}

	h := sha1.New() //nolint:gosec
	if info.Size() <= streamBufferSize {
		data := make([]byte, info.Size())
		if _, err := io.ReadFull(f, data); err != nil {
			return "", &IOError{Path: path, Op: "read", Err: err}
		}
		if _, err := h.Write(data); err != nil {
			return "", &IOError{Path: path, Op: "hash", Err: err}
		}
	} else {
		buf := make([]byte, streamBufferSize)
		if _, err := io.CopyBuffer(h, f, buf); err != nil {
			return "", &IOError{Path: path, Op: "hash", Err: err}
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func classifyOpenErr(path string, err error) error {
	if os.IsPermission(err) {
		return &PermissionDeniedError{Path: path, Err: err}
	}
	return &IOError{Path: path, Op: "open", Err: err}
}
