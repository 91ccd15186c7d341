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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

var (
	// ErrControllingActive is returned by Control while another controlling
	// child is still running.
	ErrControllingActive = errors.New("a controlling process is already running")

	// ErrClosed is returned when spawning after Cleanup.
	ErrClosed = errors.New("supervisor has been cleaned up")
)

// Handle identifies a child spawned by the Supervisor.
type Handle struct {
	// ID is the process id.
	ID int
	// Program is the path the command was started with.
	Program string
	// Controlling is true for the foreground child that owns the terminal.
	Controlling bool
}

func (h Handle) String() string {
	return fmt.Sprintf("%s [%d]", filepath.Base(h.Program), h.ID)
}

// ExitStatus is how a child terminated.
type ExitStatus struct {
	// Code is the exit code, or -1 when the child was killed by a signal.
	Code int
	// Signal is the terminating signal, zero for a normal exit.
	Signal syscall.Signal
}

// Success reports whether the child exited with status zero.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Signal == 0
}

func (s ExitStatus) String() string {
	if s.Signal != 0 {
		return "signal: " + SignalName(s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// exitStatusOf converts a finished process state.
func exitStatusOf(ps *os.ProcessState) ExitStatus {
	if ps == nil {
		return ExitStatus{Code: -1}
	}
	status := ExitStatus{Code: ps.ExitCode()}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal()
	}
	return status
}

// SignalError reports a signal delivered to tmp-postgres while it was
// blocked in Wait, WaitForMatch or WaitForSignal.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "unexpected signal " + SignalName(e.Signal)
}

// ChildExitError reports the termination of a child other than the one
// being waited for. WaitForMatch also uses it when the matched child exits
// before printing the pattern.
type ChildExitError struct {
	Handle Handle
	Status ExitStatus
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("%s [%d] terminated unexpectedly with %s", e.Handle.Program, e.Handle.ID, e.Status)
}
