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

// Package prompt provides the interactive yes/no confirmation used before
// removing a cluster directory, plus a scripted mock for tests.
package prompt

import (
	"context"
	"errors"

	"github.com/charmbracelet/lipgloss"
)

// ErrNonInteractive is returned by Confirm when no terminal is available.
var ErrNonInteractive = errors.New("cannot prompt in non-interactive mode")

// Confirmer asks the user a yes/no question.
// Implementations include HuhConfirmer (production) and MockConfirmer (testing).
type Confirmer interface {
	// Confirm displays title and returns the user's answer.
	Confirm(ctx context.Context, title string) (bool, error)

	// IsInteractive returns true if prompts can be displayed
	IsInteractive() bool
}

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

// Title renders a prompt title in the confirmation style.
func Title(s string) string {
	return titleStyle.Render(s)
}
