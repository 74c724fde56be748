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

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomoncle/provision/accounts"
	"github.com/tomoncle/provision/database"
	"github.com/tomoncle/provision/provision"
	"github.com/tomoncle/provision/server"
	"github.com/tomoncle/provision/staticfiles"
)

// Step names one startup step.
type Step string

const (
	StepMigrate         Step = "migrate"
	StepCollectStatic   Step = "collectstatic"
	StepCreateSuperuser Step = "createsuperuser"
	StepServe           Step = "serve"
)

// Sequence is the order in which Run executes the steps.
var Sequence = []Step{StepMigrate, StepCollectStatic, StepCreateSuperuser, StepServe}

// Runtime holds the initialized dependencies of the startup steps.
type Runtime struct {
	Config    *Config
	DB        *database.BaseDatabaseFactory
	Directory *accounts.Store

	logger      database.Logger
	credentials func() provision.Credentials
}

// Setup connects to the database, retrying while it is unreachable, and
// returns the Runtime. Call Close when done.
func Setup(ctx context.Context, cfg *Config, logger database.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap configuration cannot be empty")
	}
	if logger == nil {
		logger = database.NewNamedLogger("BOOTSTRAP")
	}
	accounts.Register()

	factory, err := database.Open(ctx, cfg.DatabaseConfig(), nil, false)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Config:      cfg,
		DB:          factory,
		Directory:   accounts.NewStore(factory.GetDB()),
		logger:      logger,
		credentials: provision.CredentialsFromEnv,
	}, nil
}

// Close releases the database connection.
func (r *Runtime) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Enabled reports whether step is switched on in the configuration.
func (r *Runtime) Enabled(step Step) bool {
	switch step {
	case StepMigrate:
		return r.Config.Steps.Migrate
	case StepCollectStatic:
		return r.Config.Steps.CollectStatic
	case StepCreateSuperuser:
		return r.Config.Steps.CreateSuperuser
	case StepServe:
		return r.Config.Steps.Serve
	default:
		return false
	}
}

// Run executes the enabled steps in Sequence order and stops at the first error.
func (r *Runtime) Run(ctx context.Context) error {
	for _, step := range Sequence {
		if !r.Enabled(step) {
			r.logger.Info("Step disabled, skipping", "step", string(step))
			continue
		}
		if err := r.RunStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// RunStep executes a single step regardless of whether it is enabled.
func (r *Runtime) RunStep(ctx context.Context, step Step) error {
	r.logger.Debug("Running step", "step", string(step))
	var err error
	switch step {
	case StepMigrate:
		err = r.Migrate(ctx)
	case StepCollectStatic:
		_, err = r.CollectStatic(ctx)
	case StepCreateSuperuser:
		_, err = r.CreateSuperuser(ctx)
	case StepServe:
		err = r.Serve(ctx)
	default:
		return fmt.Errorf("unknown step %q", step)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

// Migrate applies pending migrations and, when configured, the SQL fixtures.
func (r *Runtime) Migrate(ctx context.Context) error {
	manager := r.DB.GetManager()
	if err := manager.RunMigrations(ctx); err != nil {
		return err
	}
	if r.Config.Migrate.InitData {
		return manager.InitData(ctx)
	}
	return nil
}

// CollectStatic copies static assets into the static root.
func (r *Runtime) CollectStatic(ctx context.Context) (staticfiles.Result, error) {
	return r.Config.Collector(nil).Collect(ctx)
}

// CreateSuperuser provisions the default admin from the environment.
func (r *Runtime) CreateSuperuser(ctx context.Context) (provision.Outcome, error) {
	p := provision.New(r.Directory, r.Config.Superuser.Policy)
	outcome, err := p.EnsureDefaultAdmin(ctx, r.credentials())
	if err != nil {
		return outcome, err
	}
	if count, err := r.Directory.CountSuperusers(ctx); err == nil {
		stats := r.DB.GetManager().GetStats()
		r.logger.Info("Superuser provisioning finished",
			"outcome", outcome.String(),
			"superusers", count,
			"open_conns", stats.OpenConns,
			"idle_conns", stats.Idle,
		)
	}
	return outcome, nil
}

// Serve runs the dev server until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context) error {
	return server.New(r.Config.Server, r.Config.Static.Root, r.DB, nil).Run(ctx)
}
