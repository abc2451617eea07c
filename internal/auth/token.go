// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	tokenIssuer  = "teamsync"
	kindClaimKey = "kind"

	// KindUser and KindAdmin are the identity spaces a token can be
	// bound to. They are disjoint: a user token never authorises an
	// admin operation and vice versa.
	KindUser  = "user"
	KindAdmin = "admin"
)

// Claims is the validated content of a session token.
type Claims struct {
	Email string
	Kind  string
}

// TokenFactory issues and validates bearer session tokens. Tokens are
// stateless; there is no refresh mechanism and no revocation list.
type TokenFactory struct {
	secret []byte
	alg    jwa.SignatureAlgorithm
	clock  clock.Clock
}

// NewTokenFactory returns a factory signing with the given shared
// secret and judging expiry against the given clock.
func NewTokenFactory(secret []byte, clk clock.Clock) (*TokenFactory, error) {
	if len(secret) == 0 {
		return nil, errors.NotValidf("empty token secret")
	}
	return &TokenFactory{
		secret: secret,
		alg:    jwa.HS256,
		clock:  clk,
	}, nil
}

// IssueToken signs a token for the given subject email, valid for ttl.
func (f *TokenFactory) IssueToken(email, kind string, ttl time.Duration) (string, error) {
	if kind != KindUser && kind != KindAdmin {
		return "", errors.NotValidf("token kind %q", kind)
	}
	now := f.clock.Now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(email).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(kindClaimKey, kind).
		Build()
	if err != nil {
		return "", errors.Trace(err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(f.alg, f.secret))
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(signed), nil
}

// ValidateToken parses and validates raw, returning its claims. Any
// failure mode - bad signature, expired, malformed, wrong issuer,
// missing claims - comes back as Unauthorized.
func (f *TokenFactory) ValidateToken(raw string) (Claims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(f.alg, f.secret),
		jwt.WithClock(f.clock),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return Claims{}, errors.Unauthorizedf("invalid token")
	}
	kind, ok := tok.PrivateClaims()[kindClaimKey].(string)
	if !ok || (kind != KindUser && kind != KindAdmin) {
		return Claims{}, errors.Unauthorizedf("invalid token")
	}
	if tok.Subject() == "" {
		return Claims{}, errors.Unauthorizedf("invalid token")
	}
	return Claims{Email: tok.Subject(), Kind: kind}, nil
}
