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

// Activity is the controlling foreground activity of a run: Session,
// Command, or nil for none.
type Activity interface {
	activity()
}

// Session is an interactive psql session against the cluster.
type Session struct{}

// Command is a user command run against the cluster.
type Command struct {
	Program string
	Args    []string
}

func (Session) activity() {}
func (Command) activity() {}

// SelectActivity picks the activity of a run. psql takes precedence over
// trailing; otherwise the first trailing token is the program and the rest
// are its arguments. With neither, the run has no activity.
func SelectActivity(psql bool, trailing []string) Activity {
	switch {
	case psql:
		return Session{}
	case len(trailing) > 0:
		return Command{Program: trailing[0], Args: append([]string(nil), trailing[1:]...)}
	default:
		return nil
	}
}

// Describe returns a short label for logs.
func Describe(a Activity) string {
	switch a := a.(type) {
	case Session:
		return "psql"
	case Command:
		return a.Program
	default:
		return "none"
	}
}
