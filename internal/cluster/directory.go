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
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Directory is the cluster directory of one run.
type Directory struct {
	// Path is absolute.
	Path string
	// ExistedBeforeRun is true when the directory was already present.
	ExistedBeforeRun bool
	// CreatedByUs is true when this run created the directory. Only such a
	// directory may be removed during cleanup.
	CreatedByUs bool
}

// Provision validates or creates the cluster directory at path.
//
// An existing directory must be empty unless useExisting is set. A missing
// directory is created, including its parents, with mode 0700.
func Provision(path string, useExisting bool) (Directory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Directory{}, &DirectoryError{Path: path, Err: ErrCreateFailed, Cause: err}
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return Directory{}, &DirectoryError{Path: abs, Err: ErrNotADirectory}
		}
		if !useExisting {
			empty, err := isEmpty(abs)
			if err != nil {
				return Directory{}, &DirectoryError{Path: abs, Err: ErrCreateFailed, Cause: err}
			}
			if !empty {
				return Directory{}, &DirectoryError{Path: abs, Err: ErrNonemptyDirectory}
			}
		}
		return Directory{Path: abs, ExistedBeforeRun: true}, nil

	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(abs, 0o700); err != nil {
			return Directory{}, &DirectoryError{Path: abs, Err: ErrCreateFailed, Cause: err}
		}
		return Directory{Path: abs, CreatedByUs: true}, nil

	default:
		return Directory{}, &DirectoryError{Path: abs, Err: ErrCreateFailed, Cause: err}
	}
}

func isEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
