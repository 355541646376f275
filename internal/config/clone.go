// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

// Clone returns an independent copy of the record. Record has no
// pointer fields, so a plain value copy is already a deep clone.
func (r Record) Clone() Record {
	return r
}
