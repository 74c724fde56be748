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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomoncle/provision/database"
	"github.com/tomoncle/provision/provision"
	"github.com/tomoncle/provision/server"
	"github.com/tomoncle/provision/staticfiles"
	"github.com/tomoncle/provision/utils"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag is given. It may be absent.
const DefaultConfigPath = "configs/provision.yaml"

// Config is the startup configuration snapshot.
type Config struct {
	Database  database.ConnectionConfig `yaml:"database"`
	Migrate   MigrateConfig             `yaml:"migrate"`
	DataInit  database.DataInitConfig   `yaml:"data_init"`
	Superuser SuperuserConfig           `yaml:"superuser"`
	Static    StaticConfig              `yaml:"static"`
	Server    server.Config             `yaml:"server"`
	Steps     StepsConfig               `yaml:"steps"`
	Log       LogConfig                 `yaml:"log"`
}

type MigrateConfig struct {
	// InitData runs the SQL fixtures after migrating, outside the migration history.
	InitData bool `yaml:"init_data"`
}

type SuperuserConfig struct {
	Policy provision.Policy `yaml:"policy"`
}

type StaticConfig struct {
	Root  string   `yaml:"root"`
	Dirs  []string `yaml:"dirs"`
	Clear bool     `yaml:"clear"`
}

// StepsConfig enables or disables each startup step.
type StepsConfig struct {
	Migrate         bool `yaml:"migrate"`
	CollectStatic   bool `yaml:"collectstatic"`
	CreateSuperuser bool `yaml:"createsuperuser"`
	Serve           bool `yaml:"serve"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a sqlite database in the working directory with every step enabled.
func DefaultConfig() *Config {
	db := database.DefaultConfig()
	return &Config{
		Database:  db.ConnectionConfig,
		DataInit:  db.DataInitConfig,
		Superuser: SuperuserConfig{Policy: provision.PolicyAnySuperuser},
		Static:    StaticConfig{Root: "staticfiles"},
		Server:    server.DefaultConfig(),
		Steps: StepsConfig{
			Migrate:         true,
			CollectStatic:   true,
			CreateSuperuser: true,
			Serve:           true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads defaults, then the YAML file at path when it exists, then
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	database.OverrideFromEnv(&c.Database)

	if v := os.Getenv("SUPERUSER_EXISTENCE_POLICY"); v != "" {
		p, err := provision.ParsePolicy(v)
		if err != nil {
			return err
		}
		c.Superuser.Policy = p
	}
	c.Static.Root = utils.EnvDefaultString("STATIC_ROOT", c.Static.Root)
	if dirs := utils.EnvPathList("STATICFILES_DIRS"); len(dirs) > 0 {
		c.Static.Dirs = dirs
	}
	c.Server.Addr = utils.EnvDefaultString("SERVER_ADDR", c.Server.Addr)
	c.Log.Level = utils.EnvDefaultString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = utils.EnvDefaultString("CONSOLE_LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate checks the settings the steps depend on.
func (c *Config) Validate() error {
	var errs []error
	if !c.Superuser.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("invalid superuser policy %d", c.Superuser.Policy))
	}
	if c.Steps.CollectStatic && len(c.Static.Dirs) > 0 && c.Static.Root == "" {
		errs = append(errs, errors.New("static.root must be set when static.dirs are configured"))
	}
	if c.Steps.Serve && c.Server.Addr == "" && len(c.Server.Command) == 0 {
		errs = append(errs, errors.New("server.addr or server.command must be set"))
	}
	if c.Static.Root != "" {
		for _, dir := range c.Static.Dirs {
			if samePath(dir, c.Static.Root) {
				errs = append(errs, fmt.Errorf("static source %s is the static root", dir))
			}
		}
	}
	return errors.Join(errs...)
}

// DatabaseConfig returns the database section in the shape the database package expects.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		ConnectionConfig: c.Database,
		DataInitConfig:   c.DataInit,
	}
}

// Collector returns the static collector for this configuration.
func (c *Config) Collector(logger database.Logger) *staticfiles.Collector {
	return &staticfiles.Collector{
		Sources: c.Static.Dirs,
		Root:    c.Static.Root,
		Clear:   c.Static.Clear,
		Logger:  logger,
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
	}
	return absA == absB
}
