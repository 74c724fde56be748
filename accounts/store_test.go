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
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/provision/database"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	Register()

	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.DBName = filepath.Join(t.TempDir(), "accounts")
	cfg.ConnectionConfig.EnableReconnect = false
	factory, err := database.Open(context.Background(), cfg, nil, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	return NewStore(factory.GetDB(), append([]StoreOption{WithHashCost(bcrypt.MinCost)}, opts...)...)
}

func TestCreateSuperuser(t *testing.T) {
	joined := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(func() time.Time { return joined }))
	ctx := context.Background()

	exists, err := store.UserExists(ctx, SuperuserFilter())
	require.NoError(t, err)
	assert.False(t, exists)

	user, err := store.CreateSuperuser(ctx, "admin", "a@x.com", "pw123")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	got, err := store.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.True(t, got.IsSuperuser)
	assert.True(t, got.IsStaff)
	assert.True(t, got.IsActive)
	assert.True(t, got.DateJoined.Equal(joined))
	assert.True(t, strings.HasPrefix(got.Password, "bcrypt_sha256$"))
	assert.NotContains(t, got.Password, "pw123")
	assert.True(t, CheckPassword(got.Password, "pw123"))
	assert.False(t, CheckPassword(got.Password, "wrong"))

	exists, err = store.UserExists(ctx, SuperuserFilter())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.UserExists(ctx, UsernameFilter("someone-else"))
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := store.CountSuperusers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateSuperuserDuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateSuperuser(ctx, "admin", "a@x.com", "pw123")
	require.NoError(t, err)

	_, err = store.CreateSuperuser(ctx, "admin", "b@x.com", "other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserExists), "got %v", err)

	count, err := store.CountSuperusers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateSuperuserRequiresUsernameAndPassword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateSuperuser(ctx, "", "a@x.com", "pw123")
	assert.Error(t, err)
	_, err = store.CreateSuperuser(ctx, "admin", "a@x.com", "")
	assert.Error(t, err)

	count, err := store.CountSuperusers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindByUsernameNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByUsername(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrUserNotFound), "got %v", err)
}

func TestCheckPasswordRejectsForeignEncoding(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.False(t, CheckPassword(string(hash), "pw"))
	assert.False(t, CheckPassword("pbkdf2_sha256$"+string(hash), "pw"))
	assert.True(t, CheckPassword("bcrypt$"+string(hash), "pw"))
}

func TestHashPasswordLong(t *testing.T) {
	password := strings.Repeat("p", 80)
	encoded, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "bcrypt_sha256$"))
	assert.True(t, CheckPassword(encoded, password))
	assert.False(t, CheckPassword(encoded, password[:72]))
}

func TestCreateSuperuserLongPassword(t *testing.T) {
	store := newTestStore(t)
	password := strings.Repeat("p", 80)

	user, err := store.CreateSuperuser(context.Background(), "admin", "a@x.com", password)
	require.NoError(t, err)
	assert.True(t, CheckPassword(user.Password, password))
}
