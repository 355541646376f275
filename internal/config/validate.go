// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"strings"

	"github.com/mbaddeley/usdn/internal/errs"
)

// ValidationError describes one invalid field in a Record.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a Record for internally inconsistent values. It does
// not check CfgID or Hops, which are only ever set by the controller.
func (r Record) Validate() error {
	var errs_ ValidationErrors

	if r.QueryLen == 0 && !r.QueryFull {
		errs_ = append(errs_, ValidationError{"QueryLen", "must be non-zero unless QueryFull is set"})
	}
	if r.UpdatePeriod == 0 {
		errs_ = append(errs_, ValidationError{"UpdatePeriod", "must be non-zero"})
	}

	if len(errs_) > 0 {
		return errs.Wrap(errs_, errs.KindValidation, "invalid configuration")
	}
	return nil
}
