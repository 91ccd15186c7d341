// Copyright 2025 Tom Barlow
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

package shared

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/tombee/tmp-postgres/pkg/errors"
)

// mockUserVisibleError is a test implementation of UserVisibleError
type mockUserVisibleError struct {
	message    string
	suggestion string
	visible    bool
}

func (e *mockUserVisibleError) Error() string       { return e.message }
func (e *mockUserVisibleError) IsUserVisible() bool { return e.visible }
func (e *mockUserVisibleError) UserMessage() string { return e.message }
func (e *mockUserVisibleError) Suggestion() string  { return e.suggestion }

var _ pkgerrors.UserVisibleError = (*mockUserVisibleError)(nil)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitRunFailed},
		{"usage", NewUsageError("unknown flag", nil), ExitUsage},
		{"wrapped usage", fmt.Errorf("parse: %w", NewUsageError("unknown flag", nil)), ExitUsage},
		{"run", NewRunError("cleanup failed", errors.New("boom")), ExitRunFailed},
		{"reported", Reported(errors.New("boom")), ExitRunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Error(t *testing.T) {
	cause := errors.New("permission denied")

	if got := NewRunError("cleanup failed", cause).Error(); got != "cleanup failed: permission denied" {
		t.Errorf("Error() = %q", got)
	}
	if got := NewUsageError("requires a directory", nil).Error(); got != "requires a directory" {
		t.Errorf("Error() = %q", got)
	}
	if got := Reported(cause).Error(); got != "permission denied" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(Reported(cause), cause) {
		t.Error("Reported() does not unwrap to its cause")
	}
}

func TestFprintError(t *testing.T) {
	t.Run("prints suggestion of a wrapped user visible error", func(t *testing.T) {
		var buf bytes.Buffer
		err := fmt.Errorf("run: %w", &mockUserVisibleError{
			message:    "/tmp/x is a nonempty directory",
			suggestion: "Pass --use-existing-dir",
			visible:    true,
		})

		FprintError(&buf, err)

		out := buf.String()
		if !strings.Contains(out, "Error: run: /tmp/x is a nonempty directory") {
			t.Errorf("output missing error line: %q", out)
		}
		if !strings.Contains(out, "Suggestion: Pass --use-existing-dir") {
			t.Errorf("output missing suggestion: %q", out)
		}
	})

	t.Run("skips invisible errors", func(t *testing.T) {
		var buf bytes.Buffer
		FprintError(&buf, &mockUserVisibleError{message: "internal", suggestion: "hidden"})

		if strings.Contains(buf.String(), "Suggestion") {
			t.Errorf("unexpected suggestion in %q", buf.String())
		}
	})

	t.Run("nil prints nothing", func(t *testing.T) {
		var buf bytes.Buffer
		FprintError(&buf, nil)
		if buf.Len() != 0 {
			t.Errorf("FprintError(nil) wrote %q", buf.String())
		}
	})
}
