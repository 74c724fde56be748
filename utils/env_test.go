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

package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("UT_STRING", "value")
	t.Setenv("UT_BOOL", "true")
	t.Setenv("UT_BAD_BOOL", "maybe")
	t.Setenv("UT_INT", "42")
	t.Setenv("UT_SECONDS", "7")

	assert.Equal(t, "value", EnvDefaultString("UT_STRING", "def"))
	assert.Equal(t, "def", EnvDefaultString("UT_MISSING", "def"))
	assert.True(t, EnvDefaultBool("UT_BOOL", false))
	assert.True(t, EnvDefaultBool("UT_BAD_BOOL", true))
	assert.Equal(t, 42, EnvDefaultInt("UT_INT", 1))
	assert.Equal(t, 1, EnvDefaultInt("UT_MISSING", 1))
	assert.Equal(t, 7*time.Second, EnvDefaultSeconds("UT_SECONDS", time.Second))
}

func TestEnvPathList(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv("UT_PATHS", "a"+sep+" "+sep+filepath.Join("b", "c"))
	assert.Equal(t, []string{"a", filepath.Join("b", "c")}, EnvPathList("UT_PATHS"))
	assert.Nil(t, EnvPathList("UT_PATHS_MISSING"))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"DEBUG":   logrus.DebugLevel,
		" warn ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestNewLoggerIsRegistered(t *testing.T) {
	l := NewLogger("UT_LOGGER")
	assert.Same(t, l, NewLogger("UT_LOGGER"))
	assert.True(t, SetLoggerLevel("UT_LOGGER", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
	assert.False(t, SetLoggerLevel("UT_NOPE", "error"))
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "UT"}
	entry := logrus.NewEntry(logrus.New()).WithField("user", "admin")
	entry.Message = "hello"
	entry.Level = logrus.InfoLevel
	out, err := f.Format(entry)
	assert.NoError(t, err)
	assert.Contains(t, string(out), `"model":"UT"`)
	assert.Contains(t, string(out), `"message":"hello"`)
	assert.Contains(t, string(out), `"user":"admin"`)
}
