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

import "testing"

func TestLessVersionNaturalOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"A.v2", "A.v10", true},
		{"A.v10", "A.v2", false},
		{"A.v1", "A.v1", false},
		{"A.v01", "A.v1", false}, // leading zeros normalize to equal
		{"A.v2", "A.v2.1", true},
		{"A.v2.9", "A.v2.10", true},
		{"a", "b", true},
	}
	for _, c := range cases {
		if got := LessVersion(c.a, c.b); got != c.want {
			t.Errorf("LessVersion(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
