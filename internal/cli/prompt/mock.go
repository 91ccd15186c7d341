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

package prompt

import (
	"context"
	"fmt"
)

// MockConfirmer implements Confirmer with scripted responses for testing.
// Each response is a bool answer or an error.
type MockConfirmer struct {
	responses    []any
	currentIndex int
	interactive  bool
	callLog      []string
}

// NewMockConfirmer creates a new mock confirmer with pre-scripted responses.
func NewMockConfirmer(interactive bool, responses ...any) *MockConfirmer {
	return &MockConfirmer{
		responses:   responses,
		interactive: interactive,
		callLog:     make([]string, 0),
	}
}

// Confirm returns the next scripted response. A non-interactive mock
// behaves like HuhConfirmer and fails with ErrNonInteractive.
func (mc *MockConfirmer) Confirm(ctx context.Context, title string) (bool, error) {
	mc.callLog = append(mc.callLog, fmt.Sprintf("Confirm(%s)", title))

	if !mc.interactive {
		return false, ErrNonInteractive
	}
	if mc.currentIndex >= len(mc.responses) {
		return false, fmt.Errorf("no mock response available")
	}

	resp := mc.responses[mc.currentIndex]
	mc.currentIndex++

	switch v := resp.(type) {
	case bool:
		return v, nil
	case error:
		return false, v
	default:
		return false, fmt.Errorf("mock response is not a boolean")
	}
}

// IsInteractive returns the configured interactive state.
func (mc *MockConfirmer) IsInteractive() bool {
	return mc.interactive
}

// GetCallLog returns the log of all prompt calls made.
func (mc *MockConfirmer) GetCallLog() []string {
	return mc.callLog
}
