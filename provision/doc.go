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

// Package provision ensures a default administrative account exists.
//
// EnsureDefaultAdmin is meant to run once per startup, after migrations. It
// checks for an existing admin according to the configured Policy and, when
// none is found, creates one from the DJANGO_SUPERUSER_* environment
// variables. Missing credentials are a warning, not an error, so a
// deployment without them still starts.
package provision
