// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateTask_Valid(t *testing.T) {
	valid := []string{
		"poly2",
		"sine",
		"x2",
		"step_function",
		"piecewise-linear",
		"a",
		"task0123456789",
		strings.Repeat("a", 32),
	}
	for _, task := range valid {
		if err := ValidateTask(task); err != nil {
			t.Errorf("ValidateTask(%q) = %v, want nil", task, err)
		}
	}
}

func TestValidateTask_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"Poly2",                 // uppercase
		"_leading",              // must start alphanumeric
		"-leading",              // must start alphanumeric
		"has space",             // whitespace
		"semi;colon",            // injection characters
		"dot.task",              // dots not allowed
		"slash/task",            // path characters
		"task\nline",            // control characters
		strings.Repeat("a", 33), // too long
	}
	for _, task := range invalid {
		if err := ValidateTask(task); err == nil {
			t.Errorf("ValidateTask(%q) = nil, want error", task)
		}
	}
}

func TestValidateTasks(t *testing.T) {
	if err := ValidateTasks([]string{"poly2", "sine"}); err != nil {
		t.Errorf("ValidateTasks valid list = %v, want nil", err)
	}
	if err := ValidateTasks([]string{"poly2", "BAD TASK"}); err == nil {
		t.Error("ValidateTasks with invalid entry = nil, want error")
	}
	if err := ValidateTasks(nil); err != nil {
		t.Errorf("ValidateTasks(nil) = %v, want nil", err)
	}
}
