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

package provision

import (
	"fmt"

	"github.com/tomoncle/provision/utils"
)

// Environment variables holding the default admin credentials.
const (
	EnvUsername = "DJANGO_SUPERUSER_USERNAME"
	EnvEmail    = "DJANGO_SUPERUSER_EMAIL"
	EnvPassword = "DJANGO_SUPERUSER_PASSWORD"
)

// Credentials of the default admin. They are only held for the duration of
// a provisioning run.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// CredentialsFromEnv reads the DJANGO_SUPERUSER_* variables. Unset
// variables yield empty fields.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Username: utils.EnvDefaultString(EnvUsername, ""),
		Email:    utils.EnvDefaultString(EnvEmail, ""),
		Password: utils.EnvDefaultString(EnvPassword, ""),
	}
}

// Missing returns the environment variable names of the empty fields.
func (c Credentials) Missing() []string {
	var missing []string
	if c.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Email == "" {
		missing = append(missing, EnvEmail)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	return missing
}

// Complete reports whether all three fields are set.
func (c Credentials) Complete() bool {
	return len(c.Missing()) == 0
}

// String redacts the password.
func (c Credentials) String() string {
	password := ""
	if c.Password != "" {
		password = "******"
	}
	return fmt.Sprintf("Credentials{Username: %q, Email: %q, Password: %q}", c.Username, c.Email, password)
}

// GoString redacts the password in %#v output.
func (c Credentials) GoString() string {
	return c.String()
}
