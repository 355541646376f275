// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"

	"github.com/mbaddeley/usdn/internal/errs"
	"gopkg.in/yaml.v3"
)

// Load reads a Record from a YAML override file, starting from
// DefaultConfig and overwriting only the fields present in the file.
// This exists for simulation and test harnesses that want to start a
// node from a file rather than linked-in defaults; production nodes
// never require one.
func Load(path string) (Record, error) {
	rec := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, errs.Wrapf(err, errs.KindInternal, "config: read %s", path)
	}

	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, errs.Wrapf(err, errs.KindMalformed, "config: parse %s", path)
	}

	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
