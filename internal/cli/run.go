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

package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tombee/tmp-postgres/internal/cli/prompt"
	"github.com/tombee/tmp-postgres/internal/cluster"
	"github.com/tombee/tmp-postgres/internal/commands/shared"
	"github.com/tombee/tmp-postgres/internal/config"
	"github.com/tombee/tmp-postgres/internal/lifecycle"
	"github.com/tombee/tmp-postgres/internal/log"
	"github.com/tombee/tmp-postgres/internal/postgres"
)

// invocation is one fully resolved run. The config file, environment and
// flags are layered in that order.
type invocation struct {
	options         cluster.Options
	pgDir           string
	silent          bool
	shutdownTimeout time.Duration
	logConfig       *log.Config
}

func runCluster(cmd *cobra.Command, flags *runFlags, args []string) error {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return shared.NewRunError("failed to load configuration", err)
	}

	inv, err := resolve(cmd, flags, args, cfg)
	if err != nil {
		return err
	}
	inv.logConfig.Output = cmd.ErrOrStderr()

	logger := log.WithComponent(log.New(inv.logConfig), "tmp-postgres").
		With(slog.String(log.RunIDKey, uuid.NewString()))

	if flags.psql && len(trailingCommand(args)) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderWarn("--psql is set, ignoring the trailing command"))
	}
	logger.Debug("starting run",
		slog.String("activity", cluster.Describe(inv.options.Activity)),
		slog.String("remove", inv.options.Remove.String()))

	sup := lifecycle.NewSupervisor(lifecycle.Options{
		Output:          cmd.OutOrStdout(),
		Silent:          inv.silent,
		Logger:          log.WithComponent(logger, "supervisor"),
		ShutdownTimeout: inv.shutdownTimeout,
	})

	runner := cluster.NewRunner(inv.options, cluster.Deps{
		Supervisor: sup,
		Binaries:   postgres.Binaries{Dir: inv.pgDir},
		Confirmer:  prompt.NewHuhConfirmer(!shared.IsNonInteractive()),
		Logger:     logger,
	})

	runErr, cleanupErr := runner.Execute(cmd.Context(), func(err error) {
		shared.FprintError(cmd.ErrOrStderr(), err)
	})
	if cleanupErr != nil {
		return shared.NewRunError("cleanup failed", cleanupErr)
	}
	if runErr != nil {
		return shared.Reported(runErr)
	}
	return nil
}

// resolve layers flags over cfg.
func resolve(cmd *cobra.Command, flags *runFlags, args []string, cfg *config.Config) (*invocation, error) {
	remove := flags.remove
	if !cmd.Flags().Changed("remove") {
		p, err := cluster.ParseRemovalPolicy(cfg.Remove)
		if err != nil {
			return nil, shared.NewRunError("failed to load configuration", err)
		}
		remove = p
	}

	timeout := cfg.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		if flags.shutdownTimeout <= 0 {
			return nil, shared.NewUsageError("", fmt.Errorf("--shutdown-timeout must be positive"))
		}
		timeout = flags.shutdownTimeout
	}

	return &invocation{
		options: cluster.Options{
			Directory:        args[0],
			UseExistingDir:   flags.useExistingDir,
			Port:             flags.port,
			Remove:           remove,
			Activity:         cluster.SelectActivity(flags.psql, trailingCommand(args)),
			AutoExplain:      flags.autoExplain,
			VerifyConnection: flags.verify || cfg.VerifyConnection,
			Settings:         postgresSettings(cfg.ExtraSettings()),
		},
		pgDir:           cfg.PGDir,
		silent:          flags.silent || cfg.Silent,
		shutdownTimeout: timeout,
		logConfig:       logConfig(cfg),
	}, nil
}

// trailingCommand returns the command after the directory. Flag parsing
// stops at the directory, so a "--" separator reaches us as an argument.
func trailingCommand(args []string) []string {
	rest := args[1:]
	if len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}
	return rest
}

// logConfig builds the logger config: file values, then the environment,
// then --verbose/--quiet.
func logConfig(cfg *config.Config) *log.Config {
	lc := log.DefaultConfig()
	if cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = log.Format(cfg.Log.Format)
	}
	log.ApplyEnv(lc)

	switch {
	case shared.GetVerbose():
		lc.Level = "debug"
	case shared.GetQuiet():
		lc.Level = "error"
	}
	return lc
}

func postgresSettings(settings []config.Setting) []postgres.Setting {
	if len(settings) == 0 {
		return nil
	}
	out := make([]postgres.Setting, len(settings))
	for i, s := range settings {
		out[i] = postgres.Setting{Key: s.Key, Value: s.Value}
	}
	return out
}
