/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package provision

import (
	"fmt"
	"strings"

	"github.com/tomoncle/provision/accounts"
	"github.com/tomoncle/provision/types"
)

// Policy selects what counts as "an admin already exists".
type Policy int

const (
	// PolicyAnySuperuser treats any superuser as the admin.
	PolicyAnySuperuser Policy = iota + 1
	// PolicyUsername only matches an account with the configured username.
	PolicyUsername
)

var policies = []Policy{PolicyAnySuperuser, PolicyUsername}

var _ types.BaseEnum = PolicyAnySuperuser

func (p Policy) IsValid() bool {
	return p == PolicyAnySuperuser || p == PolicyUsername
}

func (p Policy) Number() int {
	if !p.IsValid() {
		return types.IllegalValue
	}
	return int(p)
}

func (p Policy) Name() string {
	switch p {
	case PolicyAnySuperuser:
		return "any_superuser"
	case PolicyUsername:
		return "username"
	default:
		return types.IllegalName
	}
}

func (p Policy) String() string { return p.Name() }

func (p Policy) Desc() string {
	switch p {
	case PolicyAnySuperuser:
		return "skip creation when any superuser exists"
	case PolicyUsername:
		return "skip creation when the configured username exists"
	default:
		return types.IllegalDesc
	}
}

// ParsePolicy parses a policy name. An empty name selects PolicyAnySuperuser.
func ParsePolicy(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return PolicyAnySuperuser, nil
	}
	if p, ok := types.EnumByName(policies, name); ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown superuser existence policy %q (want any_superuser or username)", name)
}

// UnmarshalText lets Policy be read from YAML and flags.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText encodes the policy name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.Name()), nil
}

// filter returns the existence predicate for creds, or nil when the policy
// needs a username and none was given.
func (p Policy) filter(creds Credentials) *types.QueryFilter {
	if p == PolicyUsername {
		if creds.Username == "" {
			return nil
		}
		return accounts.UsernameFilter(creds.Username)
	}
	return accounts.SuperuserFilter()
}
