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

// Package pbuconfig loads the backup run configuration from a TOML file,
// with an optional merge of ignore lists from the older INI format.
package pbuconfig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

// Config holds every option a backup run consumes.
type Config struct {
	Run runConf
}

type runConf struct {
	BasePath             string   `toml:"base_path"`
	Dest                 string   `toml:"dest"`
	Version              string   `toml:"version"`
	Folders              []string `toml:"folders"`
	Start                string   `toml:"start"`
	IgnoreFolders        []string `toml:"ignore_folders"`
	IgnoreFilenames      []string `toml:"ignore_filenames"`
	IgnoreExtensions     []string `toml:"ignore_extensions"`
	LazyMode             bool     `toml:"lazy_mode"`
	LazyCheck            bool     `toml:"lazy_check"`
	DebugMode            bool     `toml:"debug_mode"`
	AutoSavePeriodSecond int      `toml:"auto_save_period_seconds"`
}

// LoadDefaults sets sane values for every field, using the current working
// directory as the base path.
func (c *Config) LoadDefaults() error {
	pwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getwd")
	}
	c.LoadDefaultsForPath(pwd)
	return nil
}

// LoadDefaultsForPath sets sane values using path as the base directory.
func (c *Config) LoadDefaultsForPath(path string) {
	c.Run = runConf{
		BasePath:             path,
		Dest:                 filepath.Join(path, "backup"),
		Version:              "",
		AutoSavePeriodSecond: 300,
	}
}

// Load populates c from the TOML file at path. When no file exists there,
// the defaults stand on their own and the run proceeds against the current
// working directory.
func (c *Config) Load(path string) error {
	if err := c.LoadDefaults(); err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.validate()
	}
	return c.LoadConfig(path)
}

// LoadConfig reads filename (TOML) into c, validating required fields.
func (c *Config) LoadConfig(filename string) error {
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return errors.Wrapf(err, "parsing %s", filename)
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.Run.BasePath == "" {
		return errors.New("config: base_path is required")
	}
	if c.Run.Dest == "" {
		return errors.New("config: dest is required")
	}
	if c.Run.Version == "" {
		c.Run.Version = time.Now().Format("20060102.150405")
	}
	return nil
}

// LoadLegacyIgnoreINI reads a secondary, INI-format ignore list (the
// predecessor format this project's config replaces for that one concern)
// and merges its [Ignore] section into c's ignore lists. A missing file is
// not an error; installations without one simply get the TOML lists.
func (c *Config) LoadLegacyIgnoreINI(filename string) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil
	}

	cfg, err := ini.InsensitiveLoad(filename)
	if err != nil {
		return errors.Wrapf(err, "parsing legacy ignore file %s", filename)
	}

	section := cfg.Section("Ignore")
	if key, err := section.GetKey("filenames"); err == nil {
		c.Run.IgnoreFilenames = append(c.Run.IgnoreFilenames, splitCSV(key.Value())...)
	}
	if key, err := section.GetKey("extensions"); err == nil {
		c.Run.IgnoreExtensions = append(c.Run.IgnoreExtensions, splitCSV(key.Value())...)
	}
	if key, err := section.GetKey("folders"); err == nil {
		c.Run.IgnoreFolders = append(c.Run.IgnoreFolders, splitCSV(key.Value())...)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveFolders returns the folder list to back up: c.Run.Folders if
// explicitly set, otherwise every immediate subdirectory of base_path that
// already contains a .pbu file.
func (c *Config) ResolveFolders() ([]string, error) {
	if len(c.Run.Folders) > 0 {
		return c.Run.Folders, nil
	}

	entries, err := os.ReadDir(c.Run.BasePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", c.Run.BasePath)
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.Run.BasePath, e.Name(), ".pbu")); err == nil {
			folders = append(folders, e.Name())
		}
	}
	return folders, nil
}
