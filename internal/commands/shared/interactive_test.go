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

package shared

import (
	"testing"
)

var detectionEnv = []string{
	NonInteractiveEnv,
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"JENKINS_HOME",
}

func clearDetectionEnv(t *testing.T) {
	t.Helper()
	for _, key := range detectionEnv {
		t.Setenv(key, "")
	}
}

func TestIsNonInteractive(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"explicit opt-out", map[string]string{NonInteractiveEnv: "true"}},
		{"CI=true", map[string]string{"CI": "true"}},
		{"CI=1", map[string]string{"CI": "1"}},
		{"GITHUB_ACTIONS=true", map[string]string{"GITHUB_ACTIONS": "true"}},
		{"JENKINS_HOME set to path", map[string]string{"JENKINS_HOME": "/var/jenkins"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearDetectionEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			if !IsNonInteractive() {
				t.Error("IsNonInteractive() = false, expected true")
			}
		})
	}

	t.Run("no indicators follows the terminal", func(t *testing.T) {
		clearDetectionEnv(t)
		if got, want := IsNonInteractive(), !isTerminal(); got != want {
			t.Errorf("IsNonInteractive() = %v, expected %v", got, want)
		}
	})
}

func TestIsCIEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected bool
	}{
		{"no CI vars", nil, false},
		{"CI=true", map[string]string{"CI": "true"}, true},
		{"CI=false", map[string]string{"CI": "false"}, false},
		{"GITLAB_CI=true", map[string]string{"GITLAB_CI": "true"}, true},
		{"CIRCLECI=1", map[string]string{"CIRCLECI": "1"}, true},
		{"JENKINS_HOME empty", map[string]string{"JENKINS_HOME": ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearDetectionEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			if got := isCIEnvironment(); got != tt.expected {
				t.Errorf("isCIEnvironment() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
