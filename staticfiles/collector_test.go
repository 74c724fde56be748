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

package staticfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestCollectCopiesAndSkipsUnmodified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "assets")
	root := filepath.Join(dir, "staticfiles")
	writeFile(t, filepath.Join(src, "css", "site.css"), "body{}")
	writeFile(t, filepath.Join(src, "js", "app.js"), "console.log(1)")

	c := &Collector{Sources: []string{src}, Root: root}

	res, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, 0, res.Unmodified)
	assert.Equal(t, "body{}", readFile(t, filepath.Join(root, "css", "site.css")))

	res, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, 2, res.Unmodified)

	// a newer source is copied again
	writeFile(t, filepath.Join(src, "js", "app.js"), "console.log(2)")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(src, "js", "app.js"), later, later))

	res, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.Unmodified)
	assert.Equal(t, "console.log(2)", readFile(t, filepath.Join(root, "js", "app.js")))
}

func TestCollectFirstSourceWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")
	root := filepath.Join(dir, "root")
	writeFile(t, filepath.Join(first, "logo.svg"), "first")
	writeFile(t, filepath.Join(second, "logo.svg"), "second")
	writeFile(t, filepath.Join(second, "extra.txt"), "extra")

	res, err := (&Collector{Sources: []string{first, second}, Root: root}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, "first", readFile(t, filepath.Join(root, "logo.svg")))
	assert.Equal(t, "extra", readFile(t, filepath.Join(root, "extra.txt")))
}

func TestCollectClear(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	root := filepath.Join(dir, "root")
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "stale.txt"), "stale")

	res, err := (&Collector{Sources: []string{src}, Root: root, Clear: true}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cleared)
	assert.Equal(t, 1, res.Copied)
	assert.NoFileExists(t, filepath.Join(root, "stale.txt"))
	assert.FileExists(t, filepath.Join(root, "a.txt"))
}

func TestCollectWithoutSources(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")

	res, err := (&Collector{Root: root}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.NoDirExists(t, root)
}

func TestCollectMissingSourceIsSkipped(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	res, err := (&Collector{Sources: []string{filepath.Join(dir, "missing"), src}, Root: filepath.Join(dir, "root")}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied)
}

func TestCollectCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Collector{Sources: []string{src}, Root: filepath.Join(dir, "root")}).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectRequiresRoot(t *testing.T) {
	_, err := (&Collector{Sources: []string{t.TempDir()}}).Collect(context.Background())
	assert.Error(t, err)
}
