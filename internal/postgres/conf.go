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

package postgres

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFile is the server configuration file inside a data directory.
const ConfigFile = "postgresql.conf"

// Setting is a single postgresql.conf parameter.
type Setting struct {
	Key   string
	Value string
}

// PatchConfig appends the settings tmp-postgres relies on to the
// postgresql.conf that initdb wrote into dir, followed by extra. The file
// must already exist; it is never created or truncated.
//
// When port is zero the server does not listen on TCP at all. The socket
// is always placed in dir itself, and connection logging is switched on.
func PatchConfig(dir string, port uint16, extra ...Setting) error {
	path := filepath.Join(dir, ConfigFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	settings := make([]Setting, 0, 4+len(extra))
	if port == 0 {
		settings = append(settings, Setting{Key: "listen_addresses", Value: ""})
	}
	settings = append(settings,
		Setting{Key: "unix_socket_directories", Value: dir},
		Setting{Key: "log_connections", Value: "on"},
		Setting{Key: "log_disconnections", Value: "on"},
	)
	settings = append(settings, extra...)

	for _, s := range settings {
		if _, err := fmt.Fprintln(w, s.Line()); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// Line renders s as a postgresql.conf line with a quoted value.
func (s Setting) Line() string {
	return fmt.Sprintf("%s = '%s'", s.Key, strings.ReplaceAll(s.Value, "'", "''"))
}
