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

// Package staticfiles copies static assets from source directories into a
// single static root served by the dev server.
package staticfiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomoncle/provision/database"
)

// Collector copies every regular file under Sources into Root, keeping
// relative paths. On duplicate relative paths the first source wins.
type Collector struct {
	Sources []string
	Root    string
	Clear   bool // empty Root before copying
	Logger  database.Logger
}

// Result counts the files handled by Collect.
type Result struct {
	Copied     int
	Unmodified int
	Cleared    int
}

// Collect copies new or changed files. A destination with the same size
// and an mtime not older than the source is left alone.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	var res Result
	logger := c.Logger
	if logger == nil {
		logger = database.NewNamedLogger("STATIC")
	}
	if len(c.Sources) == 0 {
		logger.Info("No static file sources configured, nothing to collect")
		return res, nil
	}
	if c.Root == "" {
		return res, errors.New("static root is not set")
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return res, fmt.Errorf("failed to resolve static root: %w", err)
	}

	if c.Clear {
		n, err := clearDir(root)
		if err != nil {
			return res, fmt.Errorf("failed to clear static root: %w", err)
		}
		res.Cleared = n
		logger.Info("Cleared static root", "root", root, "removed", n)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return res, fmt.Errorf("failed to create static root: %w", err)
	}

	seen := make(map[string]struct{})
	for _, source := range c.Sources {
		src, err := filepath.Abs(source)
		if err != nil {
			return res, fmt.Errorf("failed to resolve static source %s: %w", source, err)
		}
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			logger.Warn("Static source directory does not exist, skipping", "source", source)
			continue
		}
		if err := c.collectSource(ctx, src, root, seen, &res); err != nil {
			return res, err
		}
	}

	logger.Info(fmt.Sprintf("%d static files copied to '%s', %d unmodified.", res.Copied, root, res.Unmodified))
	return res, nil
}

func (c *Collector) collectSource(ctx context.Context, src, root string, seen map[string]struct{}, res *Result) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// a root nested in its own source must not be collected again
			if path == root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if _, dup := seen[rel]; dup {
			return nil
		}
		seen[rel] = struct{}{}

		info, err := d.Info()
		if err != nil {
			return err
		}
		dst := filepath.Join(root, rel)
		if unmodified(info, dst) {
			res.Unmodified++
			return nil
		}
		if err := copyFile(path, dst, info); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}
		res.Copied++
		return nil
	})
}

func unmodified(src fs.FileInfo, dst string) bool {
	info, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() == src.Size() && !info.ModTime().Before(src.ModTime())
}

// copyFile writes through a temporary file in the destination directory and
// carries the source mtime over.
func copyFile(src, dst string, info fs.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".collect-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()|0o200); err != nil {
		return err
	}
	if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func clearDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}
