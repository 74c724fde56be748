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

package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/uptrace/bun"
)

// unnumbered fixtures run after numbered ones
const unorderedFixture = 999

var fixtureOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SQLInitManager applies SQL fixture files. Files under <root>/common run
// first, then <root>/environments/<env>; within each directory they run by
// numeric name prefix ("010_users.sql"). Each file is applied atomically.
type SQLInitManager struct {
	db          bun.IDB
	environment string
	root        string
	logger      Logger
}

// SQLFileInfo is a discovered fixture file.
type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// NewSQLInitManager creates a fixture loader for environment. When db is a
// transaction the files run inside it; otherwise each file gets its own.
func NewSQLInitManager(db bun.IDB, environment string, logger Logger) *SQLInitManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &SQLInitManager{db: db, environment: environment, root: "configs/sql", logger: logger}
}

// SetSQLRootPath sets the directory holding common/ and environments/.
func (s *SQLInitManager) SetSQLRootPath(path string) {
	s.root = path
}

// ExecuteInitialization applies every fixture file and stops at the first failure.
func (s *SQLInitManager) ExecuteInitialization(ctx context.Context) error {
	files, err := s.GetSQLFiles()
	if err != nil {
		return fmt.Errorf("failed to get SQL files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No SQL files found to execute", "sql_path", s.root, "environment", s.environment)
		return nil
	}

	for _, file := range files {
		start := time.Now()
		rows, err := s.apply(ctx, file)
		if err != nil {
			s.logger.Error("SQL file execution failed", "file", file.Path, "error", err)
			return fmt.Errorf("SQL file execution failed %s: %w", file.Path, err)
		}
		s.logger.Info("SQL file executed successfully",
			"file", file.Path,
			"duration", time.Since(start).Round(time.Microsecond).String(),
			"rows_affected", rows,
		)
	}
	s.logger.Info("SQL initialization completed", "total_files", len(files), "environment", s.environment)
	return nil
}

// GetSQLFiles lists the fixture files in execution order. Missing
// directories contribute nothing.
func (s *SQLInitManager) GetSQLFiles() ([]SQLFileInfo, error) {
	var files []SQLFileInfo
	for _, dir := range []struct{ path, env string }{
		{filepath.Join(s.root, "common"), "common"},
		{filepath.Join(s.root, "environments", s.environment), s.environment},
	} {
		found, err := discoverFixtures(dir.path, dir.env)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir.path, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverFixtures(dir, environment string) ([]SQLFileInfo, error) {
	var files []SQLFileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SQLFileInfo{
			Path:        path,
			Name:        d.Name(),
			Order:       fixtureOrder(d.Name()),
			Environment: environment,
		})
		return nil
	})
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, err
}

func fixtureOrder(name string) int {
	if m := fixtureOrderPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return unorderedFixture
}

func (s *SQLInitManager) apply(ctx context.Context, file SQLFileInfo) (int64, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	if strings.Contains(text, "{{") {
		if text, err = s.render(text); err != nil {
			return 0, err
		}
	}
	statements := splitSQLStatements(text)
	if len(statements) == 0 {
		return 0, nil
	}

	var rows int64
	if db, ok := s.db.(*bun.DB); ok {
		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return execStatements(ctx, tx, statements, &rows)
		})
	} else {
		err = execStatements(ctx, s.db, statements, &rows)
	}
	return rows, err
}

func execStatements(ctx context.Context, db bun.IConn, statements []string, rows *int64) error {
	for _, stmt := range statements {
		res, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("failed to execute SQL statement: %s, error: %w", stmt, err)
		}
		n, _ := res.RowsAffected()
		*rows += n
	}
	return nil
}

// render expands a fixture as a text/template over the process environment
// plus ENVIRONMENT and TIMESTAMP.
func (s *SQLInitManager) render(content string) (string, error) {
	tmpl, err := template.New("sql").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = s.environment
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// splitSQLStatements splits on lines ending with ';', dropping blank lines
// and "--" comments. A trailing statement without ';' is kept.
func splitSQLStatements(content string) []string {
	var statements []string
	var current []string
	flush := func() {
		if stmt := strings.TrimSpace(strings.Join(current, " ")); stmt != "" {
			statements = append(statements, stmt)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current = append(current, line)
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
