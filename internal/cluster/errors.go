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

package cluster

import (
	"errors"
	"fmt"
	"os"

	"github.com/tombee/tmp-postgres/internal/lifecycle"
	pgerrors "github.com/tombee/tmp-postgres/pkg/errors"
)

// Sentinels carried by DirectoryError.
var (
	ErrNotADirectory     = errors.New("not a directory")
	ErrNonemptyDirectory = errors.New("nonempty directory")
	ErrCreateFailed      = errors.New("directory creation failed")
)

var (
	// ErrInitdbBadExit marks an InitializationError caused by a non-zero exit.
	ErrInitdbBadExit = errors.New("initdb exited with a non-zero code")

	// ErrCreatedbBadExit marks a CreateDatabaseError caused by a non-zero exit.
	ErrCreatedbBadExit = errors.New("createdb exited with a non-zero code")
)

// Compile-time interface assertions.
var (
	_ pgerrors.UserVisibleError = (*DirectoryError)(nil)
	_ pgerrors.UserVisibleError = (*InitializationError)(nil)
	_ pgerrors.UserVisibleError = (*ControllingSpawnError)(nil)
)

// DirectoryError reports a cluster directory that cannot be used.
type DirectoryError struct {
	Path string
	// Err is one of ErrNotADirectory, ErrNonemptyDirectory or ErrCreateFailed.
	Err error
	// Cause is the underlying filesystem error, if any.
	Cause error
}

func (e *DirectoryError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotADirectory):
		return fmt.Sprintf("%s is a file, but a directory was expected", e.Path)
	case errors.Is(e.Err, ErrNonemptyDirectory):
		return fmt.Sprintf("%s is a nonempty directory", e.Path)
	case e.Cause != nil:
		return fmt.Sprintf("create %s dir failed with %v", e.Path, e.Cause)
	default:
		return fmt.Sprintf("create %s dir failed", e.Path)
	}
}

func (e *DirectoryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsUserVisible implements UserVisibleError.
func (e *DirectoryError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *DirectoryError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *DirectoryError) Suggestion() string {
	switch {
	case errors.Is(e.Err, ErrNonemptyDirectory):
		return "Pass --use-existing-dir to run against an initialized cluster, or choose an empty directory"
	case errors.Is(e.Err, ErrNotADirectory):
		return "Choose a path that is a directory or does not exist yet"
	case errors.Is(e.Cause, os.ErrPermission):
		return "Check the permissions of the parent directory"
	default:
		return ""
	}
}

// InitializationError reports a failed initdb run.
type InitializationError struct {
	// Cause is the spawn error, or ErrInitdbBadExit.
	Cause error
	// ExitCode is set when Cause is ErrInitdbBadExit.
	ExitCode int
}

func (e *InitializationError) Error() string {
	if errors.Is(e.Cause, ErrInitdbBadExit) {
		return fmt.Sprintf("initdb exited with a non-zero code (%d)", e.ExitCode)
	}
	return fmt.Sprintf("initdb failed with %v", e.Cause)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// IsUserVisible implements UserVisibleError.
func (e *InitializationError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *InitializationError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *InitializationError) Suggestion() string {
	if errors.Is(e.Cause, ErrInitdbBadExit) {
		return "See the initdb output above"
	}
	return "Set PG_DIR to the PostgreSQL installation directory or add its bin directory to PATH"
}

// ConfigPatchError reports a failure to append to postgresql.conf.
type ConfigPatchError struct {
	Path  string
	Cause error
}

func (e *ConfigPatchError) Error() string {
	return fmt.Sprintf("patching %s failed with %v", e.Path, e.Cause)
}

func (e *ConfigPatchError) Unwrap() error { return e.Cause }

// ServerNotReadyError reports a server that failed to start or exited
// before announcing readiness.
type ServerNotReadyError struct {
	Cause error
}

func (e *ServerNotReadyError) Error() string {
	return fmt.Sprintf("server did not become ready: %v", e.Cause)
}

func (e *ServerNotReadyError) Unwrap() error { return e.Cause }

// CreateDatabaseError reports a failed createdb run.
type CreateDatabaseError struct {
	// Cause is the spawn error, or ErrCreatedbBadExit.
	Cause error
	// ExitCode is set when Cause is ErrCreatedbBadExit.
	ExitCode int
}

func (e *CreateDatabaseError) Error() string {
	if errors.Is(e.Cause, ErrCreatedbBadExit) {
		return fmt.Sprintf("createdb exited with a non-zero code (%d)", e.ExitCode)
	}
	return fmt.Sprintf("createdb failed with %v", e.Cause)
}

func (e *CreateDatabaseError) Unwrap() error { return e.Cause }

// ConnectionCheckError reports a failed connection check against a
// running server.
type ConnectionCheckError struct {
	DSN   string
	Cause error
}

func (e *ConnectionCheckError) Error() string {
	return fmt.Sprintf("connection check against %s failed: %v", e.DSN, e.Cause)
}

func (e *ConnectionCheckError) Unwrap() error { return e.Cause }

// UnexpectedChildTerminatedError reports a child that exited while the
// run was waiting on something else.
type UnexpectedChildTerminatedError struct {
	ID      int
	Program string
	Status  lifecycle.ExitStatus
}

func (e *UnexpectedChildTerminatedError) Error() string {
	return fmt.Sprintf("%s [%d] terminated unexpectedly with %s", e.Program, e.ID, e.Status)
}

// ControllingSpawnError reports a controlling activity that could not start.
type ControllingSpawnError struct {
	Program string
	Cause   error
}

func (e *ControllingSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Program, e.Cause)
}

func (e *ControllingSpawnError) Unwrap() error { return e.Cause }

// IsUserVisible implements UserVisibleError.
func (e *ControllingSpawnError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ControllingSpawnError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *ControllingSpawnError) Suggestion() string {
	return fmt.Sprintf("Check that %s is installed and on PATH", e.Program)
}

// InterruptedError reports a run ended by a signal.
type InterruptedError struct {
	Signal os.Signal
}

func (e *InterruptedError) Error() string {
	return "interrupted by signal " + lifecycle.SignalName(e.Signal)
}

// IsHangup reports whether the run was ended by a hangup.
func (e *InterruptedError) IsHangup() bool {
	return lifecycle.IsHangup(e.Signal)
}
