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
Package lifecycle supervises the child processes of a tmp-postgres run.

A Supervisor owns two kinds of children. Forwarded children (initdb,
postgres, createdb) run in their own process group with stdout and stderr
captured line by line. Their lines are relayed with a "[program pid]"
prefix and can be matched while waiting for readiness:

	sup := lifecycle.NewSupervisor(lifecycle.Options{Logger: logger})
	defer sup.Cleanup()

	server, err := sup.Forward(exec.Command("postgres", "-D", dir))
	if err != nil {
	    return err
	}
	if err := sup.WaitForMatch(server, readyPattern); err != nil {
	    return err
	}

The controlling child (psql or a user command) inherits the terminal and
is waited on with Wait. Every Wait* call also observes SIGINT, SIGTERM,
SIGQUIT and SIGHUP as well as the unexpected exit of any other child, and
reports them as *SignalError and *ChildExitError.

Cleanup sends SIGINT to the process group of every forwarded child and
SIGTERM to the controlling child. It escalates to SIGKILL after the
shutdown timeout and returns once the children are reaped.
*/
package lifecycle
