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
Package cluster orchestrates one ephemeral PostgreSQL cluster from
provisioning to teardown.

A Runner drives a fixed sequence against a directory: provision it, run
initdb and patch postgresql.conf (fresh directories only), start the server
and wait for readiness, run createdb (fresh directories only), then host at
most one controlling activity. Signals and child exits reported by the
Supervisor are classified by Classify, where a hangup always aborts the run
and other signals are absorbed while a controlling process is alive.

Execute always finishes with Cleanup: the Supervisor tears down every child
before the removal policy is applied, and only a directory created by the
run is ever removed.

	runner := cluster.NewRunner(opts, cluster.Deps{
	    Supervisor: sup,
	    Binaries:   postgres.Binaries{Dir: cfg.PGDir},
	    Confirmer:  prompt.NewHuhConfirmer(true),
	    Logger:     logger,
	})
	runErr, cleanupErr := runner.Execute(ctx, printError)
*/
package cluster
