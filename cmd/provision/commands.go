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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomoncle/provision/bootstrap"
	"github.com/tomoncle/provision/provision"
	"github.com/tomoncle/provision/utils"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Migrate, collect static files, create the default admin and start the dev server",
		Long: "Without a subcommand all enabled steps run in order: migrate, collectstatic,\n" +
			"createsuperuser, serve. The default admin is read from DJANGO_SUPERUSER_USERNAME,\n" +
			"DJANGO_SUPERUSER_EMAIL and DJANGO_SUPERUSER_PASSWORD.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *bootstrap.Runtime) error {
				return rt.Run(ctx)
			})
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", bootstrap.DefaultConfigPath, "path to the YAML configuration (optional)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(
		newStepCommand(opts, bootstrap.StepMigrate, "Apply pending database migrations"),
		newCollectStaticCommand(opts),
		newCreateSuperuserCommand(opts),
		newStepCommand(opts, bootstrap.StepServe, "Start the development server"),
	)
	return cmd
}

func newStepCommand(opts *rootOptions, step bootstrap.Step, short string) *cobra.Command {
	return &cobra.Command{
		Use:          string(step),
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *bootstrap.Runtime) error {
				return rt.RunStep(ctx, step)
			})
		},
	}
}

// collectstatic does not touch the database.
func newCollectStaticCommand(opts *rootOptions) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:          string(bootstrap.StepCollectStatic),
		Short:        "Copy static files into the static root",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if clear {
				cfg.Static.Clear = true
			}
			_, err = cfg.Collector(nil).Collect(cmd.Context())
			return err
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "remove existing files in the static root first")
	return cmd
}

func newCreateSuperuserCommand(opts *rootOptions) *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:          string(bootstrap.StepCreateSuperuser),
		Short:        "Create the default admin from DJANGO_SUPERUSER_* unless one exists",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if policy != "" {
					p, err := provision.ParsePolicy(policy)
					if err != nil {
						return err
					}
					rt.Config.Superuser.Policy = p
				}
				return rt.RunStep(ctx, bootstrap.StepCreateSuperuser)
			})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "existence policy: any_superuser or username")
	return cmd
}

func loadConfig(opts *rootOptions) (*bootstrap.Config, error) {
	cfg, err := bootstrap.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)
	return cfg, nil
}

func withRuntime(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	rt, err := bootstrap.Setup(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}
