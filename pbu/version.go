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

import "unicode"

// LessVersion reports whether version string a sorts before b under natural
// ordering: runs of digits compare numerically rather than lexically, so
// "v2" sorts before "v10". Non-digit runs compare byte-for-byte.
func LessVersion(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := rune(a[i]), rune(b[j])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			ni, na := scanDigits(a, i)
			nj, nb := scanDigits(b, j)
			va := trimLeadingZeros(na)
			vb := trimLeadingZeros(nb)
			if len(va) != len(vb) {
				return len(va) < len(vb)
			}
			if va != vb {
				return va < vb
			}
			i, j = ni, nj
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func scanDigits(s string, start int) (next int, digits string) {
	end := start
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	return end, s[start:end]
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
