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

package cmd

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MacroUniverse/pbu/internal/pbulog"
	"github.com/MacroUniverse/pbu/internal/stringset"
	"github.com/MacroUniverse/pbu/pbu"
	"github.com/MacroUniverse/pbu/pbuconfig"
	"github.com/MacroUniverse/pbu/report"
)

var runLegacyIgnoreFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up every configured folder into a new snapshot version",
	Long: `run validates each source folder, plans the cheapest strategy available
(identity, promotion, or incremental rename-or-copy transfer) against its
prior snapshot, and executes it. Folders that need human review (a pending
.pbu-new, a divergent current snapshot, or a lost manifest) are skipped and
reported, but do not stop the run.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runLegacyIgnoreFile, "legacy-ignore-file", "", "merge ignore rules from this legacy INI file")
	RootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	var cfg pbuconfig.Config
	if err := cfg.Load(configFile); err != nil {
		return err
	}
	if runLegacyIgnoreFile != "" {
		if err := cfg.LoadLegacyIgnoreINI(runLegacyIgnoreFile); err != nil {
			return err
		}
	}

	folders, err := cfg.ResolveFolders()
	if err != nil {
		return err
	}
	sort.Strings(folders)

	rules := pbu.IgnoreRules{
		Filenames:  stringset.New(cfg.Run.IgnoreFilenames...),
		Extensions: stringset.New(cfg.Run.IgnoreExtensions...),
	}
	ignoreFolders := stringset.New(cfg.Run.IgnoreFolders...)

	opts := pbu.PlanOptions{
		BasePath:              cfg.Run.BasePath,
		Dest:                  cfg.Run.Dest,
		Version:               cfg.Run.Version,
		Rules:                 rules,
		LazyMode:              cfg.Run.LazyMode,
		LazyCheck:             cfg.Run.LazyCheck,
		DebugMode:             cfg.Run.DebugMode,
		AutoSavePeriodSeconds: cfg.Run.AutoSavePeriodSecond,
	}

	started := cfg.Run.Start == ""
	var results []pbu.FolderResult
	for _, folder := range folders {
		if !started {
			if folder == cfg.Run.Start {
				started = true
			} else {
				continue
			}
		}
		if ignoreFolders.Contains(folder) {
			pbulog.Info(pbulog.TagCLI, "%s: skipping, listed in ignore_folders", folder)
			continue
		}

		pbulog.Info(pbulog.TagCLI, "backing up %s", folder)
		result, err := pbu.BackupOne(folder, opts)
		if err != nil {
			fail(err)
		}
		results = append(results, result)
	}

	report.PrintSummary(os.Stdout, results)

	if report.NeedsReviewCount(results) > 0 {
		os.Exit(1)
	}
	return nil
}
