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

/*
Package cli provides the root command of tmp-postgres.

The command takes a cluster directory followed by an optional command and
its arguments. Flag parsing stops at the first positional argument, so flags
meant for the trailing command need no "--":

	tmp-postgres [flags] <directory> [command [args...]]

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	if err := cli.NewRootCommand().Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Configuration

Defaults come from ~/.config/tmp-postgres/config.yaml (see package config),
then the environment (PG_DIR, TMP_POSTGRES_*, LOG_*), then flags.

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: The run or its cleanup failed, or it was interrupted
  - Exit 2: Invalid usage

A run error is printed before cleanup starts so that it appears ahead of the
removal prompt. HandleExitError then only sets the exit code.
*/
package cli
