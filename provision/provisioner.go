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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomoncle/provision/accounts"
	"github.com/tomoncle/provision/database"
	"github.com/tomoncle/provision/types"
)

// ErrNoDirectory is returned when a Provisioner has no user directory.
var ErrNoDirectory = errors.New("provision: no user directory configured")

// Directory is the account store the provisioner consults.
type Directory interface {
	UserExists(ctx context.Context, filter *types.QueryFilter) (bool, error)
	CreateSuperuser(ctx context.Context, username, email, password string) (*accounts.User, error)
}

// Outcome is the result of a provisioning run.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeExists
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExists:
		return "exists"
	case OutcomeSkipped:
		return "skipped"
	default:
		return types.IllegalName
	}
}

// Provisioner creates the default admin when none exists.
type Provisioner struct {
	Directory Directory
	Policy    Policy
	Logger    database.Logger
}

// New returns a Provisioner logging to the PROVISION logger.
func New(dir Directory, policy Policy) *Provisioner {
	return &Provisioner{
		Directory: dir,
		Policy:    policy,
		Logger:    database.NewNamedLogger("PROVISION"),
	}
}

// EnsureDefaultAdmin creates the admin from creds unless one already exists
// under the policy. Missing credentials skip creation with a warning. A
// creation that loses a race against a concurrent one is reported as
// OutcomeExists.
func (p *Provisioner) EnsureDefaultAdmin(ctx context.Context, creds Credentials) (Outcome, error) {
	if p.Directory == nil {
		return 0, ErrNoDirectory
	}
	logger := p.Logger
	if logger == nil {
		logger = database.NewNamedLogger("PROVISION")
	}
	policy := p.Policy
	if !policy.IsValid() {
		policy = PolicyAnySuperuser
	}

	if filter := policy.filter(creds); filter != nil {
		exists, err := p.Directory.UserExists(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("failed to check for existing superuser: %w", err)
		}
		if exists {
			logger.Info("Superuser already exists. Skipping superuser creation.", "policy", policy.Name())
			return OutcomeExists, nil
		}
	}

	if missing := creds.Missing(); len(missing) > 0 {
		logger.Warn("Superuser credentials not provided in environment variables. Skipping superuser creation.",
			"missing", strings.Join(missing, ","))
		return OutcomeSkipped, nil
	}

	logger.Info("No superuser found. Creating a new superuser...")
	user, err := p.Directory.CreateSuperuser(ctx, creds.Username, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrUserExists) || database.IsDuplicateKey(err) {
			return p.usernameTaken(ctx, logger, creds.Username)
		}
		return 0, fmt.Errorf("failed to create superuser: %w", err)
	}

	username, email := creds.Username, creds.Email
	if user != nil {
		username, email = user.Username, user.Email
	}
	logger.Info("Superuser created", "username", username, "email", email)
	return OutcomeCreated, nil
}

// usernameTaken resolves a duplicate username on create: a concurrent run
// that created the superuser yields OutcomeExists, while an ordinary account
// holding the name means no admin was provisioned.
func (p *Provisioner) usernameTaken(ctx context.Context, logger database.Logger, username string) (Outcome, error) {
	admin, err := p.Directory.UserExists(ctx, accounts.SuperuserUsernameFilter(username))
	if err != nil {
		return 0, fmt.Errorf("failed to check existing account %s: %w", username, err)
	}
	if admin {
		logger.Info("Superuser already exists. Skipping superuser creation.", "username", username)
		return OutcomeExists, nil
	}
	logger.Warn("Username is taken by a non-superuser account. Skipping superuser creation.", "username", username)
	return OutcomeSkipped, nil
}
