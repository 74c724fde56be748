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

package repository

import (
	"context"

	"github.com/tomoncle/provision/types"
	"github.com/uptrace/bun"
)

// CrudRepository defines the lookups for a generic entity type.
type CrudRepository[T any] interface {
	FindOne(ctx context.Context, filter *types.QueryFilter) (*T, error)

	Exists(ctx context.Context, filter *types.QueryFilter) (bool, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}

// TransactionRepository defines inserts executed within a transaction.
type TransactionRepository[T any] interface {
	CreateWithTx(ctx context.Context, tx bun.Tx, entity ...*T) error
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Repository combines lookups and transactional inserts.
type Repository[T any] interface {
	CrudRepository[T]
	TransactionRepository[T]
}
