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
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/tmp-postgres/pkg/errors"
)

// Exit codes for tmp-postgres
const (
	ExitSuccess   = 0
	ExitRunFailed = 1
	ExitUsage     = 2
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for invalid command-line usage
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitUsage,
		Message: msg,
		Cause:   cause,
	}
}

// NewRunError creates an error for a failed run
func NewRunError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitRunFailed,
		Message: msg,
		Cause:   cause,
	}
}

// Reported wraps an error whose message has already been printed, so
// HandleExitError only sets the exit code.
func Reported(cause error) *ExitError {
	return &ExitError{Code: ExitRunFailed, Cause: &reported{cause}}
}

type reported struct{ error }

func (r *reported) Unwrap() error { return r.error }

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitRunFailed
}

// HandleExitError prints err unless it was already reported and exits with
// the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var done *reported
	if !errors.As(err, &done) {
		FprintError(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}

// PrintError prints err and its suggestion, if any, to stderr.
func PrintError(err error) {
	FprintError(os.Stderr, err)
}

// FprintError prints "Error: <msg>" to w, followed by the suggestion of the
// first UserVisibleError in the chain.
func FprintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, StatusError.Render("Error:"), err.Error())
	printUserVisibleSuggestion(w, err)
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available.
func printUserVisibleSuggestion(w io.Writer, err error) {
	userErr := pkgerrors.FindUserVisible(err)
	if userErr == nil || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
