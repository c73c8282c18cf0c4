// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for user-supplied
// identifiers.
//
// This package contains validators for values that cross service
// boundaries — most importantly fitness task names, which are forwarded
// verbatim to the evaluator service. Validating here keeps malformed or
// hostile identifiers out of outbound requests and log lines.
package validation

import (
	"fmt"
	"regexp"
)

// taskPattern matches valid fitness task names.
// Allows: lowercase letters, digits, underscores, hyphens.
// Max length: 32 characters.
var taskPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,31}$`)

// ValidateTask validates a fitness task name before it is stored in a run
// config or forwarded to the evaluator.
//
// Valid task names:
//   - 1-32 characters
//   - Lowercase letters a-z and digits 0-9
//   - Underscores and hyphens after the first character
//
// Returns an error if the task name is invalid.
//
// Example:
//
//	if err := validation.ValidateTask(cfg.Task); err != nil {
//	    return fmt.Errorf("invalid config: %w", err)
//	}
func ValidateTask(task string) error {
	if task == "" {
		return fmt.Errorf("task cannot be empty")
	}

	if !taskPattern.MatchString(task) {
		return fmt.Errorf("invalid task name: %q (must be 1-32 lowercase alphanumeric chars, underscores, or hyphens)", task)
	}

	return nil
}

// ValidateTasks validates multiple task names.
// Returns an error listing the first invalid task if any fail validation.
func ValidateTasks(tasks []string) error {
	for _, task := range tasks {
		if err := ValidateTask(task); err != nil {
			return err
		}
	}
	return nil
}
