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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/tombee/tmp-postgres/internal/lifecycle"
)

type waitResult struct {
	status lifecycle.ExitStatus
	err    error
}

// fakeSupervisor records every call by program name and replays scripted
// results. Programs without a script exit successfully.
type fakeSupervisor struct {
	calls   []string
	cmds    map[string]*exec.Cmd
	handles map[int]string
	nextID  int

	forwardErr map[string]error
	controlErr error
	onForward  map[string]func(cmd *exec.Cmd)
	waits      map[string][]waitResult
	matches    []error
	signals    []os.Signal
	signalErr  error
	cleanupErr error
	onCleanup  func()
	cleanups   int
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{
		cmds:       make(map[string]*exec.Cmd),
		handles:    make(map[int]string),
		nextID:     100,
		forwardErr: make(map[string]error),
		onForward:  make(map[string]func(cmd *exec.Cmd)),
		waits:      make(map[string][]waitResult),
	}
}

// simulateInitdb makes the fake initdb write the postgresql.conf a real
// one leaves behind.
func (f *fakeSupervisor) simulateInitdb() *fakeSupervisor {
	f.onForward["initdb"] = func(cmd *exec.Cmd) {
		dir := cmd.Args[len(cmd.Args)-1]
		if err := os.WriteFile(filepath.Join(dir, "postgresql.conf"), []byte("# initdb\n"), 0o600); err != nil {
			panic(err)
		}
	}
	return f
}

func (f *fakeSupervisor) spawn(kind string, cmd *exec.Cmd, controlling bool) (lifecycle.Handle, error) {
	name := filepath.Base(cmd.Args[0])
	f.calls = append(f.calls, kind+" "+name)
	f.cmds[name] = cmd

	if controlling && f.controlErr != nil {
		return lifecycle.Handle{}, f.controlErr
	}
	if err := f.forwardErr[name]; err != nil {
		return lifecycle.Handle{}, err
	}
	if hook := f.onForward[name]; hook != nil {
		hook(cmd)
	}

	f.nextID++
	f.handles[f.nextID] = name
	return lifecycle.Handle{ID: f.nextID, Program: cmd.Args[0], Controlling: controlling}, nil
}

func (f *fakeSupervisor) Forward(cmd *exec.Cmd) (lifecycle.Handle, error) {
	return f.spawn("forward", cmd, false)
}

func (f *fakeSupervisor) Control(cmd *exec.Cmd) (lifecycle.Handle, error) {
	return f.spawn("control", cmd, true)
}

func (f *fakeSupervisor) Wait(h lifecycle.Handle) (lifecycle.ExitStatus, error) {
	name := f.handles[h.ID]
	f.calls = append(f.calls, "wait "+name)

	queue := f.waits[name]
	if len(queue) == 0 {
		return lifecycle.ExitStatus{}, nil
	}
	f.waits[name] = queue[1:]
	return queue[0].status, queue[0].err
}

func (f *fakeSupervisor) WaitForMatch(h lifecycle.Handle, pattern *regexp.Regexp) error {
	f.calls = append(f.calls, "match "+f.handles[h.ID])
	if len(f.matches) == 0 {
		return nil
	}
	err := f.matches[0]
	f.matches = f.matches[1:]
	return err
}

func (f *fakeSupervisor) WaitForSignal() (os.Signal, error) {
	f.calls = append(f.calls, "signal")
	if f.signalErr != nil {
		return nil, f.signalErr
	}
	if len(f.signals) == 0 {
		panic(fmt.Sprintf("WaitForSignal called without a scripted signal; calls: %v", f.calls))
	}
	sig := f.signals[0]
	f.signals = f.signals[1:]
	return sig, nil
}

func (f *fakeSupervisor) Cleanup() error {
	f.calls = append(f.calls, "cleanup")
	f.cleanups++
	if f.onCleanup != nil {
		f.onCleanup()
	}
	return f.cleanupErr
}

func signalErr(sig os.Signal) waitResult {
	return waitResult{err: &lifecycle.SignalError{Signal: sig}}
}
