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
	"syscall"

	"golang.org/x/sys/unix"
)

// IsProcessRunning reports whether pid exists and can be signalled.
func IsProcessRunning(pid int) bool {
	// Signal 0 performs the existence and permission checks only.
	return unix.Kill(pid, 0) == nil
}

// SignalName returns the conventional name of sig, e.g. "SIGHUP".
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	if sig == nil {
		return "<nil>"
	}
	return sig.String()
}

// IsHangup reports whether sig means the controlling terminal went away.
func IsHangup(sig os.Signal) bool {
	return sig == syscall.SIGHUP
}

// sendSignal delivers sig to pid. When group is set, pid leads its own
// process group and every member receives the signal.
// A process that has already gone away is not an error.
func sendSignal(pid int, group bool, sig syscall.Signal) error {
	target := pid
	if group {
		target = -pid
	}
	if err := unix.Kill(target, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to send signal %s to process %d: %w", SignalName(sig), pid, err)
	}
	return nil
}
