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

	"github.com/tombee/tmp-postgres/internal/lifecycle"
)

// WaitMode is what the run is waiting on when an event arrives.
type WaitMode int

const (
	// WaitStep waits on a forwarded step: initdb, readiness or createdb.
	WaitStep WaitMode = iota
	// WaitControlling waits on the controlling process.
	WaitControlling
	// WaitPassive waits for a signal with no controlling process.
	WaitPassive
)

func (m WaitMode) String() string {
	switch m {
	case WaitStep:
		return "step"
	case WaitControlling:
		return "controlling"
	case WaitPassive:
		return "passive"
	default:
		return "unknown"
	}
}

// State is the outcome of classifying one wait result.
type State int

const (
	// StateWaiting means keep waiting.
	StateWaiting State = iota
	// StateTerminated means the awaited thing completed.
	StateTerminated
	// StateSignaled means the run was interrupted.
	StateSignaled
	// StateFailed means the run failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	case StateSignaled:
		return "signaled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classify maps the error returned by a Supervisor wait in mode to the
// next State, plus the run error for StateSignaled and StateFailed.
//
// A hangup interrupts the run in every mode. Any other signal is absorbed
// while a controlling process is alive and interrupts otherwise. A child
// exit reported as an error always fails the run.
func Classify(mode WaitMode, err error) (State, error) {
	if err == nil {
		return StateTerminated, nil
	}

	var sigErr *lifecycle.SignalError
	if errors.As(err, &sigErr) {
		if lifecycle.IsHangup(sigErr.Signal) {
			return StateSignaled, &InterruptedError{Signal: sigErr.Signal}
		}
		if mode == WaitControlling {
			return StateWaiting, nil
		}
		return StateSignaled, &InterruptedError{Signal: sigErr.Signal}
	}

	var exitErr *lifecycle.ChildExitError
	if errors.As(err, &exitErr) {
		return StateFailed, &UnexpectedChildTerminatedError{
			ID:      exitErr.Handle.ID,
			Program: exitErr.Handle.Program,
			Status:  exitErr.Status,
		}
	}

	return StateFailed, err
}
