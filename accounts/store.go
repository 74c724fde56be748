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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/provision/database"
	"github.com/tomoncle/provision/repository"
	"github.com/tomoncle/provision/types"
	"github.com/uptrace/bun"
)

var (
	// ErrUserExists is returned when the username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by lookups that match no user.
	ErrUserNotFound = errors.New("user not found")
)

// SuperuserFilter matches every account with superuser status.
func SuperuserFilter() *types.QueryFilter {
	return types.NewQueryFilter("is_superuser = ?", true)
}

// SuperuserUsernameFilter matches the account with the given username only if
// it has superuser status.
func SuperuserUsernameFilter(username string) *types.QueryFilter {
	return types.NewQueryFilter("username = ? AND is_superuser = ?", username, true)
}

// UsernameFilter matches the account with the given username.
func UsernameFilter(username string) *types.QueryFilter {
	return types.NewQueryFilter("username = ?", username)
}

// Store reads and creates users in auth_user.
type Store struct {
	repo     repository.Repository[User]
	hashCost int
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) StoreOption {
	return func(s *Store) { s.hashCost = cost }
}

// WithClock replaces the time source used for date_joined.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over db.
func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	s := &Store{
		repo: repository.NewRepository[User](db),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserExists reports whether any user matches filter.
func (s *Store) UserExists(ctx context.Context, filter *types.QueryFilter) (bool, error) {
	exists, err := s.repo.Exists(ctx, filter)
	if err != nil {
		if database.IsMissingTable(err) {
			return false, fmt.Errorf("auth_user table is missing, run migrations first: %w", err)
		}
		return false, fmt.Errorf("failed to query users: %w", err)
	}
	return exists, nil
}

// CreateSuperuser inserts an active staff superuser with a hashed password.
// A taken username yields an error wrapping ErrUserExists.
func (s *Store) CreateSuperuser(ctx context.Context, username, email, password string) (*User, error) {
	if username == "" {
		return nil, errors.New("username must be set")
	}
	if password == "" {
		return nil, errors.New("password must be set")
	}

	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:    username,
		Email:       email,
		Password:    hash,
		IsSuperuser: true,
		IsStaff:     true,
		IsActive:    true,
		DateJoined:  s.now().UTC(),
	}
	err = s.repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.CreateWithTx(ctx, tx, user)
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, fmt.Errorf("failed to create superuser %s: %w", username, err)
	}
	return user, nil
}

// FindByUsername returns the user with the given username or ErrUserNotFound.
func (s *Store) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, err := s.repo.FindOne(ctx, UsernameFilter(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, err
	}
	return user, nil
}

// CountSuperusers returns the number of superuser accounts.
func (s *Store) CountSuperusers(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, SuperuserFilter())
}
