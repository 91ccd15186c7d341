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

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tombee/tmp-postgres/internal/log"
)

// Cleanup stops every child and then applies policy to the directory.
// The directory is only touched when this run created it. Calls after the
// first are no-ops.
func (r *Runner) Cleanup(ctx context.Context, policy RemovalPolicy) error {
	if r.cleanedUp {
		return nil
	}
	r.cleanedUp = true

	var errs []error
	// Children must be gone before the directory can be removed.
	if err := r.sup.Cleanup(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop child processes: %w", err))
	}
	if err := r.removeDirectory(ctx, policy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runner) removeDirectory(ctx context.Context, policy RemovalPolicy) error {
	if !r.dir.CreatedByUs {
		return nil
	}
	path := r.dir.Path

	switch policy {
	case RemoveNever:
		r.logger.Debug("keeping directory")
		return nil
	case RemoveAsk:
		if !r.confirm.IsInteractive() {
			r.logger.Warn("cannot ask for removal without a terminal, keeping directory")
			return nil
		}
		ok, err := r.confirm.Confirm(ctx, fmt.Sprintf("Remove %s?", path))
		if err != nil {
			r.logger.Warn("removal prompt failed, keeping directory", log.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	r.logger.Debug("removed directory")
	return nil
}

// Execute runs the sequence and always cleans up afterwards. report, when
// set, receives a non-nil run error before cleanup so its message is shown
// ahead of any removal prompt.
func (r *Runner) Execute(ctx context.Context, report func(error)) (runErr, cleanupErr error) {
	runErr = r.Run(ctx)
	if runErr != nil && report != nil {
		report(runErr)
	}
	cleanupErr = r.Cleanup(ctx, ResolvePolicy(r.opts.Remove, runErr))
	return runErr, cleanupErr
}
