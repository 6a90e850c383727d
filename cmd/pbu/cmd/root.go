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
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/MacroUniverse/pbu/internal/pbulog"
)

// Version is the pbu release version.
const Version = "0.1.0"

var configFile string
var logFile string
var verbosity int

// RootCmd is the base command when pbu is called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "pbu",
	Short: "pbu is a versioned, content-addressed incremental folder backup tool",
	Long: `pbu snapshots a set of source folders into versioned, content-addressed
backup trees. Unchanged files are renamed (not copied) from the previous
snapshot, so repeated runs cost space and time proportional to what changed.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		pbulog.SetLevel(pbulog.LevelInfo + verbosity)
		if logFile != "" {
			if _, err := pbulog.SetOutputFile(logFile); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute adds all child commands to RootCmd and runs it. Called once from
// main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "pbu.toml", "config file to use; defaults apply when it does not exist")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write log output to this file instead of stderr")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	RootCmd.Flags().Bool("version", false, "print version information and quit")
	RootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("pbu %s\n", Version)
			return nil
		}
		return cmd.Usage()
	}
}

func fail(err error) {
	log.Printf("ERROR: %s\n", err)
	os.Exit(1)
}

func failf(format string, a ...interface{}) {
	log.Printf(fmt.Sprintf("ERROR: %s\n", format), a...)
	os.Exit(1)
}
