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

// Package postgres locates the PostgreSQL programs, builds their command
// lines and prepares a freshly initialized data directory.
package postgres

import (
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
)

// ReadyPattern matches the server log line announcing readiness.
var ReadyPattern = regexp.MustCompile("database system is ready to accept connections")

// Binaries resolves PostgreSQL program names.
type Binaries struct {
	// Dir is the installation directory, usually $PG_DIR. Programs are
	// taken from its bin/ subdirectory. Empty means PATH lookup.
	Dir string
}

// Path returns the path of the named program.
func (b Binaries) Path(name string) string {
	if b.Dir == "" {
		return name
	}
	return filepath.Join(b.Dir, "bin", name)
}

// InitDB returns the command initializing a cluster in dir.
func (b Binaries) InitDB(dir string) *exec.Cmd {
	return exec.Command(b.Path("initdb"), "-D", dir)
}

// Server returns the command running the server on dir. A zero port keeps
// the server on its default port, reachable through the socket only.
func (b Binaries) Server(dir string, port uint16) *exec.Cmd {
	args := []string{"-D", dir}
	if port != 0 {
		args = append(args, "-p", strconv.Itoa(int(port)))
	}
	return exec.Command(b.Path("postgres"), args...)
}

// CreateDB returns the command creating the default database over the
// socket in dir.
func (b Binaries) CreateDB(dir string, port uint16) *exec.Cmd {
	return exec.Command(b.Path("createdb"), hostArgs(dir, port)...)
}

// PSQL returns the command for an interactive session over the socket in dir.
func (b Binaries) PSQL(dir string, port uint16) *exec.Cmd {
	return exec.Command(b.Path("psql"), hostArgs(dir, port)...)
}

func hostArgs(dir string, port uint16) []string {
	args := []string{"--host", dir}
	if port != 0 {
		args = append(args, "--port", strconv.Itoa(int(port)))
	}
	return args
}
