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
	"bytes"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"testing"
	"time"
)

func newTestSupervisor(t *testing.T, opts Options) (*Supervisor, chan os.Signal) {
	t.Helper()
	sigs := make(chan os.Signal, 1)
	if opts.Signals == nil {
		opts.Signals = sigs
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 2 * time.Second
	}
	s := NewSupervisor(opts)
	t.Cleanup(func() { _ = s.Cleanup() })
	return s, sigs
}

func TestSupervisor_WaitForMatch(t *testing.T) {
	t.Run("returns when a line matches", func(t *testing.T) {
		var out bytes.Buffer
		s, _ := newTestSupervisor(t, Options{Output: &out})

		h, err := s.Forward(exec.Command("sh", "-c", "echo starting; echo server is ready now >&2; sleep 60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}

		if err := s.WaitForMatch(h, regexp.MustCompile("is ready")); err != nil {
			t.Fatalf("WaitForMatch() error = %v", err)
		}
		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}

		got := out.String()
		for _, want := range []string{"starting", "server is ready now", h.String()} {
			if !strings.Contains(got, want) {
				t.Errorf("output %q does not contain %q", got, want)
			}
		}
	})

	t.Run("silent mode still matches", func(t *testing.T) {
		var out bytes.Buffer
		s, _ := newTestSupervisor(t, Options{Output: &out, Silent: true})

		h, err := s.Forward(exec.Command("sh", "-c", "echo ready; sleep 60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		if err := s.WaitForMatch(h, regexp.MustCompile("^ready$")); err != nil {
			t.Fatalf("WaitForMatch() error = %v", err)
		}
		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("silent supervisor wrote %q", out.String())
		}
	})

	t.Run("child exit before match", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		h, err := s.Forward(exec.Command("sh", "-c", "echo bad config; exit 1"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}

		err = s.WaitForMatch(h, regexp.MustCompile("ready"))
		var exitErr *ChildExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("WaitForMatch() error = %v, want *ChildExitError", err)
		}
		if exitErr.Handle.ID != h.ID || exitErr.Status.Code != 1 {
			t.Errorf("ChildExitError = %+v, want handle %v with code 1", exitErr, h)
		}
	})

	t.Run("signal before match", func(t *testing.T) {
		s, sigs := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		h, err := s.Forward(exec.Command("sleep", "60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		sigs <- syscall.SIGINT

		err = s.WaitForMatch(h, regexp.MustCompile("ready"))
		var sigErr *SignalError
		if !errors.As(err, &sigErr) || sigErr.Signal != syscall.SIGINT {
			t.Fatalf("WaitForMatch() error = %v, want SIGINT *SignalError", err)
		}
	})
}

func TestSupervisor_Wait(t *testing.T) {
	t.Run("returns exit status of the waited child", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		h, err := s.Forward(exec.Command("sh", "-c", "echo working; exit 3"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}

		status, err := s.Wait(h)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if status.Code != 3 || status.Success() {
			t.Errorf("status = %v, want exit status 3", status)
		}
	})

	t.Run("reports exit of another child", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		server, err := s.Forward(exec.Command("sleep", "60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		crasher, err := s.Forward(exec.Command("sh", "-c", "exit 1"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}

		_, err = s.Wait(server)
		var exitErr *ChildExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Wait() error = %v, want *ChildExitError", err)
		}
		if exitErr.Handle.ID != crasher.ID {
			t.Errorf("ChildExitError handle = %v, want %v", exitErr.Handle, crasher)
		}
	})

	t.Run("returns delivered signal", func(t *testing.T) {
		s, sigs := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		h, err := s.Forward(exec.Command("sleep", "60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		sigs <- syscall.SIGHUP

		_, err = s.Wait(h)
		var sigErr *SignalError
		if !errors.As(err, &sigErr) {
			t.Fatalf("Wait() error = %v, want *SignalError", err)
		}
		if !IsHangup(sigErr.Signal) {
			t.Errorf("signal = %v, want SIGHUP", sigErr.Signal)
		}
	})
}

func TestSupervisor_Control(t *testing.T) {
	t.Run("controlling child shares caller streams", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		var stdout bytes.Buffer
		cmd := exec.Command("sh", "-c", "echo hello from psql")
		cmd.Stdout = &stdout

		h, err := s.Control(cmd)
		if err != nil {
			t.Fatalf("Control() error = %v", err)
		}
		if !h.Controlling {
			t.Error("Handle.Controlling = false, want true")
		}

		status, err := s.Wait(h)
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if !status.Success() {
			t.Errorf("status = %v, want success", status)
		}
		if got := stdout.String(); got != "hello from psql\n" {
			t.Errorf("stdout = %q, want %q", got, "hello from psql\n")
		}
	})

	t.Run("refuses a second controlling child", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		cmd := exec.Command("sleep", "60")
		cmd.Stdout = &bytes.Buffer{}
		if _, err := s.Control(cmd); err != nil {
			t.Fatalf("Control() error = %v", err)
		}

		second := exec.Command("sleep", "60")
		second.Stdout = &bytes.Buffer{}
		if _, err := s.Control(second); !errors.Is(err, ErrControllingActive) {
			t.Errorf("second Control() error = %v, want ErrControllingActive", err)
		}
	})
}

func TestSupervisor_WaitForSignal(t *testing.T) {
	s, sigs := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

	if _, err := s.Forward(exec.Command("sleep", "60")); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	sigs <- syscall.SIGTERM

	sig, err := s.WaitForSignal()
	if err != nil {
		t.Fatalf("WaitForSignal() error = %v", err)
	}
	if sig != syscall.SIGTERM {
		t.Errorf("WaitForSignal() = %v, want SIGTERM", sig)
	}
}

func TestSupervisor_Cleanup(t *testing.T) {
	t.Run("terminates live children", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		h, err := s.Forward(exec.Command("sleep", "60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}

		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if IsProcessRunning(h.ID) {
			t.Errorf("process %d still running after Cleanup", h.ID)
		}
	})

	t.Run("escalates to SIGKILL", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{
			Output:          &bytes.Buffer{},
			ShutdownTimeout: 200 * time.Millisecond,
		})

		h, err := s.Forward(exec.Command("sh", "-c", "trap '' INT TERM; echo armed; sleep 60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		// The trap must be installed before the shutdown signal arrives.
		if err := s.WaitForMatch(h, regexp.MustCompile("armed")); err != nil {
			t.Fatalf("WaitForMatch() error = %v", err)
		}

		start := time.Now()
		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
			t.Errorf("Cleanup() returned after %v, before the shutdown timeout", elapsed)
		}
		if IsProcessRunning(h.ID) {
			t.Errorf("process %d still running after Cleanup", h.ID)
		}
	})

	t.Run("forwarded children get SIGINT", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{
			Output:          &bytes.Buffer{},
			ShutdownTimeout: 5 * time.Second,
		})

		// Ignoring SIGTERM only: a fast exit proves SIGINT was delivered.
		h, err := s.Forward(exec.Command("sh", "-c", "trap '' TERM; echo armed; exec sleep 60"))
		if err != nil {
			t.Fatalf("Forward() error = %v", err)
		}
		if err := s.WaitForMatch(h, regexp.MustCompile("armed")); err != nil {
			t.Fatalf("WaitForMatch() error = %v", err)
		}

		start := time.Now()
		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed >= 4*time.Second {
			t.Errorf("Cleanup() took %v, want the child to stop on SIGINT", elapsed)
		}
	})

	t.Run("controlling child gets SIGTERM", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{
			Output:          &bytes.Buffer{},
			ShutdownTimeout: 5 * time.Second,
		})

		cmd := exec.Command("sh", "-c", "trap '' INT; exec sleep 60")
		cmd.Stdout = &bytes.Buffer{}
		h, err := s.Control(cmd)
		if err != nil {
			t.Fatalf("Control() error = %v", err)
		}
		time.Sleep(200 * time.Millisecond)

		start := time.Now()
		if err := s.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed >= 4*time.Second {
			t.Errorf("Cleanup() took %v, want the child to stop on SIGTERM", elapsed)
		}
		if IsProcessRunning(h.ID) {
			t.Errorf("process %d still running after Cleanup", h.ID)
		}
	})

	t.Run("ignores children that are already gone", func(t *testing.T) {
		saved := killWait
		killWait = 50 * time.Millisecond
		t.Cleanup(func() { killWait = saved })

		s, _ := newTestSupervisor(t, Options{
			Output:          &bytes.Buffer{},
			ShutdownTimeout: 50 * time.Millisecond,
		})

		gone := exec.Command("true")
		if err := gone.Run(); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		pid := gone.ProcessState.Pid()

		// A tracked child whose exit was never observed.
		s.mu.Lock()
		s.children[pid] = &child{
			handle:    Handle{ID: pid, Program: "true"},
			forwarded: true,
			exited:    make(chan struct{}),
		}
		s.mu.Unlock()

		if err := s.Cleanup(); err != nil {
			t.Errorf("Cleanup() error = %v, want nil for a process that no longer exists", err)
		}
	})

	t.Run("is idempotent and closes the supervisor", func(t *testing.T) {
		s, _ := newTestSupervisor(t, Options{Output: &bytes.Buffer{}})

		if err := s.Cleanup(); err != nil {
			t.Fatalf("first Cleanup() error = %v", err)
		}
		if err := s.Cleanup(); err != nil {
			t.Fatalf("second Cleanup() error = %v", err)
		}
		if _, err := s.Forward(exec.Command("true")); !errors.Is(err, ErrClosed) {
			t.Errorf("Forward() after Cleanup error = %v, want ErrClosed", err)
		}
		if _, err := s.Control(exec.Command("true")); !errors.Is(err, ErrClosed) {
			t.Errorf("Control() after Cleanup error = %v, want ErrClosed", err)
		}
	})
}
