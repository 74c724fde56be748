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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSteps(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "collectstatic", "createsuperuser", "serve"}, names)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestMigrateThenCreateSuperuser(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_NAME", filepath.Join(dir, "app"))
	t.Setenv("DB_ENABLE_RECONNECT", "false")
	t.Setenv("DJANGO_SUPERUSER_USERNAME", "admin")
	t.Setenv("DJANGO_SUPERUSER_EMAIL", "a@x.com")
	t.Setenv("DJANGO_SUPERUSER_PASSWORD", "pw123")
	config := filepath.Join(dir, "missing.yaml")
	ctx := context.Background()

	assert.Equal(t, 1, submain(ctx, []string{"--config", config, "createsuperuser"}), "auth_user does not exist yet")
	assert.Equal(t, 0, submain(ctx, []string{"--config", config, "migrate"}))
	assert.Equal(t, 0, submain(ctx, []string{"--config", config, "createsuperuser"}))
	assert.Equal(t, 0, submain(ctx, []string{"--config", config, "createsuperuser", "--policy", "username"}))
	assert.Equal(t, 1, submain(ctx, []string{"--config", config, "createsuperuser", "--policy", "nobody"}))
}

func TestCollectStaticCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "assets")
	root := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.js"), []byte("1"), 0o644))
	config := filepath.Join(dir, "provision.yaml")
	require.NoError(t, os.WriteFile(config, []byte("static:\n  root: "+root+"\n  dirs: ["+src+"]\n"), 0o644))

	assert.Equal(t, 0, submain(context.Background(), []string{"--config", config, "collectstatic"}))
	assert.FileExists(t, filepath.Join(root, "app.js"))
}

func TestUnknownArgumentsFail(t *testing.T) {
	assert.Equal(t, 1, submain(context.Background(), []string{"--config", "", "flush"}))
}
