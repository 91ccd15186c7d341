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
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// RemovalPolicy decides what happens to a directory created by the run.
type RemovalPolicy int

const (
	// RemoveAsk prompts before removing. It is the zero value.
	RemoveAsk RemovalPolicy = iota
	// RemoveAlways removes without asking.
	RemoveAlways
	// RemoveNever keeps the directory.
	RemoveNever
)

var _ pflag.Value = (*RemovalPolicy)(nil)

// String implements pflag.Value.
func (p RemovalPolicy) String() string {
	switch p {
	case RemoveAlways:
		return "always"
	case RemoveNever:
		return "never"
	default:
		return "ask"
	}
}

// Set implements pflag.Value. It accepts boolean spellings so the flag
// reads as --remove true, --remove=false and so on.
func (p *RemovalPolicy) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	if v {
		*p = RemoveAlways
	} else {
		*p = RemoveNever
	}
	return nil
}

// Type implements pflag.Value.
func (p *RemovalPolicy) Type() string {
	return "bool"
}

// ParseRemovalPolicy parses the config file spelling of a policy.
func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return RemoveAsk, nil
	case "always", "true", "yes":
		return RemoveAlways, nil
	case "never", "false", "no":
		return RemoveNever, nil
	default:
		return RemoveAsk, fmt.Errorf("invalid removal policy %q (expected ask, always or never)", s)
	}
}

// ResolvePolicy returns the policy cleanup applies after a run that ended
// with runErr. A run ended by hangup has no terminal to answer a prompt,
// so Ask becomes Always.
func ResolvePolicy(p RemovalPolicy, runErr error) RemovalPolicy {
	if p != RemoveAsk {
		return p
	}
	var interrupted *InterruptedError
	if errors.As(runErr, &interrupted) && interrupted.IsHangup() {
		return RemoveAlways
	}
	return p
}
