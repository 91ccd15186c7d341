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
	"errors"

	"github.com/charmbracelet/huh"
)

// HuhConfirmer implements Confirmer with a huh confirm form.
type HuhConfirmer struct {
	interactive bool
}

// NewHuhConfirmer creates a huh-based confirmer.
func NewHuhConfirmer(interactive bool) *HuhConfirmer {
	return &HuhConfirmer{interactive: interactive}
}

// Confirm shows a Yes/No form. Aborting the form (Ctrl+C, Esc) counts as no.
func (hc *HuhConfirmer) Confirm(ctx context.Context, title string) (bool, error) {
	if !hc.interactive {
		return false, ErrNonInteractive
	}

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(Title(title)).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// IsInteractive returns whether the confirmer can display prompts.
func (hc *HuhConfirmer) IsInteractive() bool {
	return hc.interactive
}
