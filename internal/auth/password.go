// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package auth supplies the credential primitives used by the state
// layer and the apiserver: password hashing, bearer session tokens and
// one-time codes. Callers treat hashes, tokens and codes as opaque.
package auth

import (
	"crypto/subtle"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// HashPassword derives a one-way hash of password with a fresh random
// salt. Both values must be stored; the password cannot be recovered.
func HashPassword(password string) (hash, salt string, err error) {
	salt, err = utils.RandomSalt()
	if err != nil {
		return "", "", errors.Trace(err)
	}
	return utils.UserPasswordHash(password, salt), salt, nil
}

// PasswordValid reports whether password hashes to hash under salt.
// The comparison takes the same time whether or not it matches.
func PasswordValid(password, hash, salt string) bool {
	if hash == "" || salt == "" {
		return false
	}
	computed := utils.UserPasswordHash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
