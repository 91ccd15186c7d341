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
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tombee/tmp-postgres/internal/log"
)

// DefaultShutdownTimeout is the grace period between the shutdown signal
// and SIGKILL when Options.ShutdownTimeout is zero.
const DefaultShutdownTimeout = 10 * time.Second

// killWait bounds how long Cleanup waits for children after SIGKILL.
var killWait = 5 * time.Second

// Signals is the set of signals the Supervisor subscribes to.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP}

var prefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// Options configures a Supervisor.
type Options struct {
	// Output receives the relayed lines of forwarded children.
	// Default: os.Stdout
	Output io.Writer

	// Silent captures forwarded output without relaying it.
	Silent bool

	// Logger receives diagnostic events. Default: discard.
	Logger *slog.Logger

	// ShutdownTimeout is the grace period Cleanup gives children before
	// escalating to SIGKILL. Default: DefaultShutdownTimeout
	ShutdownTimeout time.Duration

	// ShutdownSignal is sent to the process group of every live forwarded
	// child by Cleanup. SIGINT requests a fast shutdown from postgres, which
	// does not wait for connected clients. The controlling child always
	// receives SIGTERM.
	// Default: SIGINT
	ShutdownSignal syscall.Signal

	// Signals, when set, replaces the OS signal subscription. Tests use it
	// to inject signals without signalling the test binary.
	Signals <-chan os.Signal
}

type eventKind int

const (
	eventOutput eventKind = iota
	eventExit
)

type event struct {
	kind   eventKind
	handle Handle
	line   string
	status ExitStatus
}

type child struct {
	handle    Handle
	cmd       *exec.Cmd
	forwarded bool
	exited    chan struct{}
}

// Supervisor spawns children, relays their output and funnels their
// output lines, their exits and OS signals into a single event stream
// that the blocking Wait* calls consume one at a time.
//
// Forwarded children run in their own process group with output captured.
// At most one controlling child runs at a time; it shares the terminal and
// process group of tmp-postgres.
type Supervisor struct {
	output   io.Writer
	silent   bool
	logger   *slog.Logger
	grace    time.Duration
	shutdown syscall.Signal

	events      chan event
	signals     <-chan os.Signal
	stopSignals func()
	done        chan struct{}
	closeOnce   sync.Once

	writeMu sync.Mutex

	mu          sync.Mutex
	children    map[int]*child
	controlling *child
}

// NewSupervisor creates a Supervisor and subscribes it to Signals.
func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{
		output:   opts.Output,
		silent:   opts.Silent,
		logger:   opts.Logger,
		grace:    opts.ShutdownTimeout,
		shutdown: opts.ShutdownSignal,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		children: make(map[int]*child),
	}
	if s.output == nil {
		s.output = os.Stdout
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	if s.grace <= 0 {
		s.grace = DefaultShutdownTimeout
	}
	if s.shutdown == 0 {
		s.shutdown = syscall.SIGINT
	}

	if opts.Signals != nil {
		s.signals = opts.Signals
		s.stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 4)
		signal.Notify(ch, Signals...)
		s.signals = ch
		s.stopSignals = func() { signal.Stop(ch) }
	}

	return s
}

// Forward starts cmd with its stdout and stderr captured line by line.
// Lines are relayed to the output unless the Supervisor is silent, and are
// always available to WaitForMatch.
func (s *Supervisor) Forward(cmd *exec.Cmd) (Handle, error) {
	if s.closed() {
		return Handle{}, ErrClosed
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Handle{}, fmt.Errorf("failed to capture stdout of %s: %w", cmd.Path, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Handle{}, fmt.Errorf("failed to capture stderr of %s: %w", cmd.Path, err)
	}

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	// Own process group: a terminal Ctrl+C reaches tmp-postgres only, and
	// Cleanup decides when the server stops.
	cmd.SysProcAttr.Setpgid = true

	if err := cmd.Start(); err != nil {
		return Handle{}, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	c := s.track(cmd, false)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.scan(c.handle, stdout, &wg)
	go s.scan(c.handle, stderr, &wg)
	go func() {
		// Wait closes the pipes, so it must follow the readers.
		wg.Wait()
		s.reap(c)
	}()

	return c.handle, nil
}

// Control starts cmd as the controlling child. It inherits the terminal
// unless cmd already has its standard streams set.
func (s *Supervisor) Control(cmd *exec.Cmd) (Handle, error) {
	if s.closed() {
		return Handle{}, ErrClosed
	}

	s.mu.Lock()
	if s.controlling != nil {
		select {
		case <-s.controlling.exited:
		default:
			s.mu.Unlock()
			return Handle{}, ErrControllingActive
		}
	}
	s.mu.Unlock()

	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return Handle{}, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	c := s.track(cmd, true)
	go s.reap(c)

	return c.handle, nil
}

// Wait blocks until h exits and returns its status. A delivered signal
// returns a *SignalError, and the exit of any other child returns a
// *ChildExitError. Output of forwarded children keeps flowing while waiting.
func (s *Supervisor) Wait(h Handle) (ExitStatus, error) {
	for {
		select {
		case sig := <-s.signals:
			return ExitStatus{}, &SignalError{Signal: sig}
		case ev := <-s.events:
			if ev.kind != eventExit {
				continue
			}
			if ev.handle.ID == h.ID {
				return ev.status, nil
			}
			return ExitStatus{}, &ChildExitError{Handle: ev.handle, Status: ev.status}
		}
	}
}

// WaitForMatch blocks until a line of h's output matches pattern. Any
// child exit, h included, returns a *ChildExitError; a delivered signal
// returns a *SignalError. There is no timeout.
func (s *Supervisor) WaitForMatch(h Handle, pattern *regexp.Regexp) error {
	for {
		select {
		case sig := <-s.signals:
			return &SignalError{Signal: sig}
		case ev := <-s.events:
			switch ev.kind {
			case eventOutput:
				if ev.handle.ID == h.ID && pattern.MatchString(ev.line) {
					return nil
				}
			case eventExit:
				return &ChildExitError{Handle: ev.handle, Status: ev.status}
			}
		}
	}
}

// WaitForSignal blocks until a signal is delivered. A child exiting in the
// meantime returns a *ChildExitError.
func (s *Supervisor) WaitForSignal() (os.Signal, error) {
	for {
		select {
		case sig := <-s.signals:
			return sig, nil
		case ev := <-s.events:
			if ev.kind == eventExit {
				return nil, &ChildExitError{Handle: ev.handle, Status: ev.status}
			}
		}
	}
}

// Cleanup tears down every live child: the shutdown signal first, SIGKILL
// once the grace period runs out. It stops signal delivery and returns only
// after all children are reaped or the SIGKILL wait expires. Calling it
// again is a no-op besides re-checking for survivors.
func (s *Supervisor) Cleanup() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.stopSignals()
	})

	live := s.liveChildren()
	if len(live) == 0 {
		return nil
	}

	var errs []error
	for _, c := range live {
		sig := s.shutdownSignal(c)
		s.logger.Debug("stopping child",
			log.Int(log.PIDKey, c.handle.ID),
			log.String(log.ProgramKey, c.handle.Program),
			log.String(log.SignalKey, SignalName(sig)))
		if err := sendSignal(c.handle.ID, c.forwarded, sig); err != nil {
			errs = append(errs, err)
		}
	}

	grace := time.NewTimer(s.grace)
	defer grace.Stop()
	for _, c := range live {
		select {
		case <-c.exited:
			continue
		case <-grace.C:
		}
		// Grace period is over for everyone still running.
		s.killRemaining(live, &errs)
		break
	}

	for _, c := range s.liveChildren() {
		if !IsProcessRunning(c.handle.ID) {
			s.logger.Debug("child exited but was not reaped",
				log.Int(log.PIDKey, c.handle.ID),
				log.String(log.ProgramKey, c.handle.Program))
			continue
		}
		errs = append(errs, fmt.Errorf("%s did not exit after SIGKILL", c.handle))
	}

	return errors.Join(errs...)
}

func (s *Supervisor) shutdownSignal(c *child) syscall.Signal {
	if c.forwarded {
		return s.shutdown
	}
	return syscall.SIGTERM
}

func (s *Supervisor) killRemaining(live []*child, errs *[]error) {
	for _, c := range live {
		select {
		case <-c.exited:
			continue
		default:
		}
		s.logger.Warn("child ignored shutdown signal, killing",
			log.Int(log.PIDKey, c.handle.ID),
			log.String(log.ProgramKey, c.handle.Program))
		if err := sendSignal(c.handle.ID, c.forwarded, syscall.SIGKILL); err != nil {
			*errs = append(*errs, err)
		}
	}

	deadline := time.NewTimer(killWait)
	defer deadline.Stop()
	for _, c := range live {
		select {
		case <-c.exited:
		case <-deadline.C:
			return
		}
	}
}

func (s *Supervisor) track(cmd *exec.Cmd, controlling bool) *child {
	c := &child{
		handle: Handle{
			ID:          cmd.Process.Pid,
			Program:     cmd.Path,
			Controlling: controlling,
		},
		cmd:       cmd,
		forwarded: !controlling,
		exited:    make(chan struct{}),
	}

	s.mu.Lock()
	s.children[c.handle.ID] = c
	if controlling {
		s.controlling = c
	}
	s.mu.Unlock()

	s.logger.Debug("spawned child",
		log.Int(log.PIDKey, c.handle.ID),
		log.String(log.ProgramKey, c.handle.Program),
		slog.Bool("controlling", controlling))
	return c
}

func (s *Supervisor) liveChildren() []*child {
	s.mu.Lock()
	defer s.mu.Unlock()

	var live []*child
	for _, c := range s.children {
		select {
		case <-c.exited:
		default:
			live = append(live, c)
		}
	}
	return live
}

func (s *Supervisor) scan(h Handle, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !s.silent {
			s.writeLine(h, line)
		}
		s.emit(event{kind: eventOutput, handle: h, line: line})
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("output stream closed with error",
			log.Int(log.PIDKey, h.ID), log.Error(err))
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func (s *Supervisor) writeLine(h Handle, line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fmt.Fprintf(s.output, "%s %s\n", prefixStyle.Render("["+h.String()+"]"), line)
}

func (s *Supervisor) reap(c *child) {
	err := c.cmd.Wait()
	status := exitStatusOf(c.cmd.ProcessState)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Debug("wait returned error", log.Int(log.PIDKey, c.handle.ID), log.Error(err))
	}
	s.logger.Debug("child exited",
		log.Int(log.PIDKey, c.handle.ID),
		log.String(log.ProgramKey, c.handle.Program),
		log.String("status", status.String()))

	close(c.exited)
	s.emit(event{kind: eventExit, handle: c.handle, status: status})
}

// emit hands ev to the active Wait* call. After Cleanup nobody reads the
// stream any more, so events are dropped instead of blocking.
func (s *Supervisor) emit(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Supervisor) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
