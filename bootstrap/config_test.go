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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/provision/provision"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, provision.PolicyAnySuperuser, cfg.Superuser.Policy)
	assert.Equal(t, "staticfiles", cfg.Static.Root)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr)
	assert.Equal(t, StepsConfig{true, true, true, true}, cfg.Steps)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provision.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  type: sqlite
  dbname: /tmp/app
  reconnect_interval: 500ms
superuser:
  policy: username
static:
  root: public
  dirs: [assets, vendor]
server:
  addr: 127.0.0.1:9000
  shutdown_timeout: 3s
steps:
  serve: false
`), 0o644))

	t.Setenv("SERVER_ADDR", "127.0.0.1:9100")
	t.Setenv("DB_NAME", "/tmp/other")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other", cfg.Database.DBName)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.ReconnectInterval)
	assert.Equal(t, provision.PolicyUsername, cfg.Superuser.Policy)
	assert.Equal(t, "public", cfg.Static.Root)
	assert.Equal(t, []string{"assets", "vendor"}, cfg.Static.Dirs)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Steps.Serve)
	assert.True(t, cfg.Steps.Migrate)
}

func TestLoadConfigPolicyFromEnv(t *testing.T) {
	t.Setenv("SUPERUSER_EXISTENCE_POLICY", "username")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, provision.PolicyUsername, cfg.Superuser.Policy)

	t.Setenv("SUPERUSER_EXISTENCE_POLICY", "nobody")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provision.yaml")
	require.NoError(t, os.WriteFile(path, []byte("superuser:\n  policy: everyone\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateStaticRootInSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Static.Dirs = []string{"staticfiles/"}
	assert.Error(t, cfg.Validate())
}
