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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tmp-postgres/internal/cluster"
	"github.com/tombee/tmp-postgres/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// runFlags holds the per-invocation flags of the root command.
type runFlags struct {
	useExistingDir  bool
	port            uint16
	remove          cluster.RemovalPolicy
	psql            bool
	silent          bool
	autoExplain     bool
	verify          bool
	shutdownTimeout time.Duration
}

type runFunc func(cmd *cobra.Command, flags *runFlags, args []string) error

// NewRootCommand creates the root Cobra command for tmp-postgres
func NewRootCommand() *cobra.Command {
	return newRootCommand(runCluster)
}

func newRootCommand(run runFunc) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "tmp-postgres [flags] <directory> [command [args...]]",
		Short: "Run a throwaway PostgreSQL cluster",
		Long: `tmp-postgres initializes a PostgreSQL cluster in <directory>, starts the
server and creates the default database. It then runs psql (--psql) or the
given command against the cluster, or waits for Ctrl+C when neither is given.
All processes are stopped on exit, and a directory created by the run can be
removed afterwards.

The server listens on a Unix socket inside <directory>. --port additionally
enables TCP. Programs are taken from $PG_DIR/bin when PG_DIR is set.`,
		Example: `  tmp-postgres /tmp/pg --psql
  tmp-postgres --remove true /tmp/pg go test ./...
  tmp-postgres --use-existing-dir -p 5433 /tmp/pg`,
		Args:          directoryArg,
		Version:       shared.VersionString(),
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, args)
		},
	}

	// Everything after the directory belongs to the trailing command.
	cmd.Flags().SetInterspersed(false)

	// Get flag pointers from shared package
	verbose, quiet, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/tmp-postgres/config.yaml)")

	cmd.Flags().BoolVar(&flags.useExistingDir, "use-existing-dir", false, "Run against an already initialized cluster directory")
	cmd.Flags().Uint16VarP(&flags.port, "port", "p", 0, "Also listen on this TCP port (default: socket only)")
	cmd.Flags().Var(&flags.remove, "remove", "Remove the directory on exit without asking (true) or keep it (false)")
	cmd.Flags().BoolVar(&flags.psql, "psql", false, "Start an interactive psql session")
	cmd.Flags().BoolVar(&flags.silent, "silent", false, "Do not forward initdb, postgres and createdb output")
	cmd.Flags().BoolVar(&flags.autoExplain, "auto-explain", false, "Reserved, currently has no effect")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Check a connection to the server before starting the command")
	cmd.Flags().DurationVar(&flags.shutdownTimeout, "shutdown-timeout", 0, "Time children get to exit before they are killed (default: 10s)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return shared.NewUsageError("", err)
	})
	cmd.SetVersionTemplate("tmp-postgres {{.Version}}\n")

	return cmd
}

func directoryArg(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return shared.NewUsageError("", fmt.Errorf("requires a cluster directory argument"))
	}
	return nil
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
