// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/juju/errors"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// NewCode returns a 6-digit one-time code, uniform over
// [100000, 999999]. The same generator serves registration and
// password-reset challenges.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", errors.Trace(err)
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}

// ValidCode reports whether s has the shape of a one-time code:
// exactly six decimal digits.
func ValidCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
