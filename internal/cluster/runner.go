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
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/tombee/tmp-postgres/internal/cli/prompt"
	"github.com/tombee/tmp-postgres/internal/lifecycle"
	"github.com/tombee/tmp-postgres/internal/log"
	"github.com/tombee/tmp-postgres/internal/postgres"
)

// Supervisor spawns and observes the children of a run.
// *lifecycle.Supervisor is the production implementation.
type Supervisor interface {
	Forward(cmd *exec.Cmd) (lifecycle.Handle, error)
	Control(cmd *exec.Cmd) (lifecycle.Handle, error)
	Wait(h lifecycle.Handle) (lifecycle.ExitStatus, error)
	WaitForMatch(h lifecycle.Handle, pattern *regexp.Regexp) error
	WaitForSignal() (os.Signal, error)
	Cleanup() error
}

var _ Supervisor = (*lifecycle.Supervisor)(nil)

// Options describes one run.
type Options struct {
	// Directory is the cluster directory, relative paths allowed.
	Directory string

	// UseExistingDir runs against an initialized directory and skips
	// initdb, the config patch and createdb.
	UseExistingDir bool

	// Port makes the server listen on TCP as well. Zero means socket only.
	Port uint16

	// Remove is the removal policy before signal adjustment.
	Remove RemovalPolicy

	// Activity is the controlling activity, nil for none.
	Activity Activity

	// AutoExplain is accepted for compatibility and has no effect.
	AutoExplain bool

	// VerifyConnection pings the server before the activity starts.
	VerifyConnection bool

	// Settings are appended to postgresql.conf after the built-in ones.
	Settings []postgres.Setting
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Supervisor Supervisor
	Binaries   postgres.Binaries
	Confirmer  prompt.Confirmer
	Logger     *slog.Logger

	// Ping checks a connection. Default: postgres.Ping
	Ping func(ctx context.Context, info postgres.ConnInfo) error
}

// Runner drives one cluster run.
type Runner struct {
	opts    Options
	sup     Supervisor
	bins    postgres.Binaries
	confirm prompt.Confirmer
	logger  *slog.Logger
	ping    func(ctx context.Context, info postgres.ConnInfo) error

	dir       Directory
	cleanedUp bool
}

// NewRunner creates a Runner. deps.Supervisor is required.
func NewRunner(opts Options, deps Deps) *Runner {
	r := &Runner{
		opts:    opts,
		sup:     deps.Supervisor,
		bins:    deps.Binaries,
		confirm: deps.Confirmer,
		logger:  deps.Logger,
		ping:    deps.Ping,
	}
	if r.logger == nil {
		r.logger = log.Discard()
	}
	if r.confirm == nil {
		r.confirm = prompt.NewHuhConfirmer(false)
	}
	if r.ping == nil {
		r.ping = postgres.Ping
	}
	return r
}

// Directory returns the provisioned directory. It is the zero value until
// Run has provisioned it.
func (r *Runner) Directory() Directory {
	return r.dir
}

// Run executes the orchestration sequence. It returns nil when the
// controlling process exited; a run without activity only ends through an
// *InterruptedError. Run never tears anything down: call Cleanup (or use
// Execute) afterwards on every path.
func (r *Runner) Run(ctx context.Context) error {
	dir, err := Provision(r.opts.Directory, r.opts.UseExistingDir)
	if err != nil {
		return err
	}
	r.dir = dir
	r.logger = r.logger.With(log.DirectoryKey, dir.Path)
	r.logger.Debug("provisioned directory",
		slog.Bool("created", dir.CreatedByUs),
		slog.Bool("use_existing", r.opts.UseExistingDir))

	if r.opts.AutoExplain {
		r.logger.Warn("auto-explain is not supported yet and has no effect")
	}

	if !r.opts.UseExistingDir {
		if err := r.initialize(); err != nil {
			return err
		}
		if err := postgres.PatchConfig(dir.Path, r.opts.Port, r.opts.Settings...); err != nil {
			return &ConfigPatchError{Path: filepath.Join(dir.Path, postgres.ConfigFile), Cause: err}
		}
	}

	if err := r.startServer(); err != nil {
		return err
	}

	if !r.opts.UseExistingDir {
		if err := r.createDatabase(); err != nil {
			return err
		}
	}

	conn := postgres.NewConnInfo(dir.Path, r.opts.Port)
	if r.opts.VerifyConnection {
		if err := r.ping(ctx, conn); err != nil {
			return &ConnectionCheckError{DSN: conn.DSN(), Cause: err}
		}
		r.logger.Debug("connection check passed")
	}

	return r.runActivity(conn)
}

func (r *Runner) initialize() error {
	h, err := r.sup.Forward(r.bins.InitDB(r.dir.Path))
	if err != nil {
		return &InitializationError{Cause: err}
	}

	status, err := r.waitStep(h)
	if err != nil {
		return err
	}
	if !status.Success() {
		return &InitializationError{Cause: ErrInitdbBadExit, ExitCode: status.Code}
	}
	return nil
}

func (r *Runner) startServer() error {
	h, err := r.sup.Forward(r.bins.Server(r.dir.Path, r.opts.Port))
	if err != nil {
		return &ServerNotReadyError{Cause: err}
	}

	for {
		state, err := Classify(WaitStep, r.sup.WaitForMatch(h, postgres.ReadyPattern))
		switch state {
		case StateTerminated:
			r.logger.Debug("server ready", log.Int(log.PIDKey, h.ID))
			return nil
		case StateWaiting:
			continue
		case StateSignaled:
			return err
		default:
			return &ServerNotReadyError{Cause: err}
		}
	}
}

func (r *Runner) createDatabase() error {
	h, err := r.sup.Forward(r.bins.CreateDB(r.dir.Path, r.opts.Port))
	if err != nil {
		return &CreateDatabaseError{Cause: err}
	}

	status, err := r.waitStep(h)
	if err != nil {
		return err
	}
	if !status.Success() {
		return &CreateDatabaseError{Cause: ErrCreatedbBadExit, ExitCode: status.Code}
	}
	return nil
}

// waitStep waits for a forwarded step to exit.
func (r *Runner) waitStep(h lifecycle.Handle) (lifecycle.ExitStatus, error) {
	for {
		status, err := r.sup.Wait(h)
		state, err := Classify(WaitStep, err)
		switch state {
		case StateTerminated:
			return status, nil
		case StateWaiting:
			continue
		default:
			return status, err
		}
	}
}

func (r *Runner) runActivity(conn postgres.ConnInfo) error {
	var cmd *exec.Cmd
	switch a := r.opts.Activity.(type) {
	case Session:
		cmd = r.bins.PSQL(r.dir.Path, r.opts.Port)
	case Command:
		cmd = exec.Command(a.Program, a.Args...)
	default:
		return r.waitPassive()
	}
	cmd.Env = append(os.Environ(), conn.Env()...)

	h, err := r.sup.Control(cmd)
	if err != nil {
		return &ControllingSpawnError{Program: cmd.Args[0], Cause: err}
	}
	r.logger.Debug("controlling process started",
		log.Int(log.PIDKey, h.ID),
		log.String(log.ProgramKey, h.Program))

	for {
		status, waitErr := r.sup.Wait(h)
		state, err := Classify(WaitControlling, waitErr)
		switch state {
		case StateWaiting:
			var sigErr *lifecycle.SignalError
			if errors.As(waitErr, &sigErr) {
				r.logger.Debug("signal ignored while controlling process runs",
					log.String(log.SignalKey, lifecycle.SignalName(sigErr.Signal)))
			}
			continue
		case StateTerminated:
			if !status.Success() {
				r.logger.Warn("controlling process exited with failure",
					log.Int(log.PIDKey, h.ID),
					log.String("status", status.String()))
			}
			return nil
		default:
			return err
		}
	}
}

func (r *Runner) waitPassive() error {
	r.logger.Debug("no controlling process, waiting for a signal")

	sig, err := r.sup.WaitForSignal()
	if err == nil {
		err = &lifecycle.SignalError{Signal: sig}
	}
	_, err = Classify(WaitPassive, err)
	return err
}
