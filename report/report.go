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

// Package report prints the user-visible per-folder summary of a backup
// run: one row per folder with the strategy taken, its review status and
// the delete/change/new/moved tallies.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/MacroUniverse/pbu/pbu"
)

// PrintSummary renders one row per folder result to w.
func PrintSummary(w io.Writer, results []pbu.FolderResult) {
	sorted := append([]pbu.FolderResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Folder < sorted[j].Folder })

	table := tablewriter.NewWriter(w)
	table.SetRowLine(true)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"FOLDER", "STRATEGY", "STATUS", "NEW", "CHANGED", "DELETED", "MOVED"})

	for _, r := range sorted {
		status := "ok"
		if r.NeedsReview {
			status = "needs review"
		}
		if r.Message != "" {
			status = fmt.Sprintf("%s (%s)", status, r.Message)
		}
		table.Append([]string{
			r.Folder,
			string(r.Strategy),
			status,
			fmt.Sprintf("%d", r.Counts.New),
			fmt.Sprintf("%d", r.Counts.Changed),
			fmt.Sprintf("%d", r.Counts.Deleted),
			fmt.Sprintf("%d", r.Counts.Moved),
		})
	}

	table.Render()
}

// NeedsReviewCount returns how many results are flagged for review, which
// the caller uses to decide the process exit status.
func NeedsReviewCount(results []pbu.FolderResult) int {
	n := 0
	for _, r := range results {
		if r.NeedsReview {
			n++
		}
	}
	return n
}
