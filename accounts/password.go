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
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptAlgorithm       = "bcrypt"
	bcryptSHA256Algorithm = "bcrypt_sha256"
)

// HashPassword returns the encoded "bcrypt_sha256" hash of password. The
// password is pre-hashed with SHA-256 so bcrypt's 72 byte limit never applies.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(sha256Hex(password), cost)
	if err != nil {
		return "", err
	}
	return bcryptSHA256Algorithm + "$" + string(hash), nil
}

// CheckPassword reports whether password matches an encoded "bcrypt" or
// "bcrypt_sha256" hash.
func CheckPassword(encoded, password string) bool {
	algorithm, hash, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}
	var secret []byte
	switch algorithm {
	case bcryptSHA256Algorithm:
		secret = sha256Hex(password)
	case bcryptAlgorithm:
		secret = []byte(password)
	default:
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), secret) == nil
}

func sha256Hex(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}
