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

package accounts

import (
	"sync"
	"time"

	"github.com/tomoncle/provision/database"
	"github.com/uptrace/bun"
)

// User is a row of auth_user.
type User struct {
	bun.BaseModel `bun:"table:auth_user,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Password    string    `bun:"password,notnull" json:"-"`
	LastLogin   time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	IsSuperuser bool      `bun:"is_superuser,notnull" json:"is_superuser"`
	Username    string    `bun:"username,notnull,unique" json:"username"`
	FirstName   string    `bun:"first_name,notnull" json:"first_name"`
	LastName    string    `bun:"last_name,notnull" json:"last_name"`
	Email       string    `bun:"email,notnull" json:"email"`
	IsStaff     bool      `bun:"is_staff,notnull" json:"is_staff"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	DateJoined  time.Time `bun:"date_joined,notnull" json:"date_joined"`
}

// UserPriority orders auth_user before tables that reference it.
const UserPriority = 10

var registerOnce sync.Once

// Register adds User to the database model registry so the base migration
// creates auth_user. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		database.RegisteredModel(database.NewModelAdapter((*User)(nil), UserPriority))
	})
}
