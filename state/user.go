// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"

	"github.com/teamsync/teamsync/internal/auth"
)

// userDoc is keyed by lowercased email, which is what makes email
// uniqueness a DocMissing assert instead of a racy read-then-insert.
// The id field is the entity identifier handed to callers and
// referenced by projects, tasks and memberships.
type userDoc struct {
	DocID        string    `bson:"_id"`
	ID           string    `bson:"id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password-hash"`
	PasswordSalt string    `bson:"password-salt"`
	RegisterCode string    `bson:"register-code,omitempty"`
	ResetCode    string    `bson:"reset-code"`
	CreatedAt    time.Time `bson:"created-at"`
	LastLogin    time.Time `bson:"last-login,omitempty"`
}

// User represents an account in the store.
type User struct {
	st  *State
	doc userDoc
}

// AddUserArgs holds the signup parameters.
type AddUserArgs struct {
	Name     string
	Email    string
	Password string

	// RegisterCode is the registration challenge code. It is only
	// examined when the state was configured to require it.
	RegisterCode string
}

// AddUser creates an account. The email must not already be
// registered; the password is stored hashed and never in clear. A
// reset code is generated up front so a password-reset challenge is
// always available.
func (st *State) AddUser(args AddUserArgs) (*User, error) {
	if strings.TrimSpace(args.Name) == "" {
		return nil, errors.NotValidf("empty name")
	}
	if !validEmail(args.Email) {
		return nil, errors.NotValidf("email %q", args.Email)
	}
	if len(args.Password) < 8 {
		return nil, errors.NotValidf("password shorter than 8 characters")
	}
	if st.cfg.RequireRegisterCode && !auth.ValidCode(args.RegisterCode) {
		return nil, errors.NotValidf("registration code %q", args.RegisterCode)
	}

	hash, salt, err := auth.HashPassword(args.Password)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resetCode, err := auth.NewCode()
	if err != nil {
		return nil, errors.Trace(err)
	}

	doc := userDoc{
		DocID:        strings.ToLower(args.Email),
		ID:           newID(),
		Name:         args.Name,
		Email:        args.Email,
		PasswordHash: hash,
		PasswordSalt: salt,
		ResetCode:    resetCode,
		CreatedAt:    st.nowToTheSecond(),
	}
	if st.cfg.RequireRegisterCode {
		doc.RegisterCode = args.RegisterCode
	}

	ops := []txn.Op{{
		C:      usersC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, onAbort(err, errors.AlreadyExistsf("user with email %q", args.Email))
	}
	return &User{st: st, doc: doc}, nil
}

// User returns the account registered under email.
func (st *State) User(email string) (*User, error) {
	user := &User{st: st}
	err := st.db.One(usersC, strings.ToLower(email), &user.doc)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("user %q", email)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return user, nil
}

// userByID resolves an account by its entity id.
func (st *State) userByID(id string) (*User, error) {
	var docs []userDoc
	if err := st.db.All(usersC, bson.D{{Name: "id", Value: id}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	if len(docs) == 0 {
		return nil, errors.NotFoundf("user %q", id)
	}
	return &User{st: st, doc: docs[0]}, nil
}

// LoginUser authenticates email/password and records the login time.
func (st *State) LoginUser(email, password string) (*User, error) {
	if !validEmail(email) {
		return nil, errors.NotValidf("email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.NotValidf("password shorter than 8 characters")
	}
	u, err := st.User(email)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !u.PasswordValid(password) {
		return nil, errors.Unauthorizedf("password does not match")
	}
	if err := u.UpdateLastLogin(); err != nil {
		return nil, errors.Trace(err)
	}
	return u, nil
}

// ConfirmReset consumes a password-reset code for the account under
// email, applying a new password and/or name when supplied. The stored
// code is rotated in the same transaction that checks it, so a code
// that validated once can never validate again, even when two resets
// race.
func (st *State) ConfirmReset(email, code, newPassword, newName string) error {
	if !validEmail(email) {
		return errors.NotValidf("email %q", email)
	}
	if !auth.ValidCode(code) {
		return errors.NotValidf("reset code %q", code)
	}
	if newPassword != "" && len(newPassword) < 8 {
		return errors.NotValidf("password shorter than 8 characters")
	}

	buildTxn := func(attempt int) ([]txn.Op, error) {
		u, err := st.User(email)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if code != u.doc.ResetCode {
			return nil, errors.Unauthorizedf("invalid reset code")
		}
		nextCode, err := auth.NewCode()
		if err != nil {
			return nil, errors.Trace(err)
		}
		set := bson.D{{Name: "reset-code", Value: nextCode}}
		if newPassword != "" {
			hash, salt, err := auth.HashPassword(newPassword)
			if err != nil {
				return nil, errors.Trace(err)
			}
			set = append(set, bson.DocElem{Name: "password-hash", Value: hash})
			set = append(set, bson.DocElem{Name: "password-salt", Value: salt})
		}
		if newName != "" {
			set = append(set, bson.DocElem{Name: "name", Value: newName})
		}
		return []txn.Op{{
			C:      usersC,
			Id:     u.doc.DocID,
			Assert: bson.D{{Name: "reset-code", Value: code}},
			Update: bson.D{{Name: "$set", Value: set}},
		}}, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// ID returns the account's entity identifier.
func (u *User) ID() string {
	return u.doc.ID
}

// Name returns the account's display name.
func (u *User) Name() string {
	return u.doc.Name
}

// Email returns the account's email address.
func (u *User) Email() string {
	return u.doc.Email
}

// CreatedAt returns when the account was registered, in UTC.
func (u *User) CreatedAt() time.Time {
	return u.doc.CreatedAt.UTC()
}

// LastLogin returns the time of the last successful login; zero when
// the account has never logged in.
func (u *User) LastLogin() time.Time {
	if u.doc.LastLogin.IsZero() {
		return time.Time{}
	}
	return u.doc.LastLogin.UTC()
}

// ResetCode returns the currently valid password-reset code. The
// delivery channel (mail and the like) sits outside this layer.
func (u *User) ResetCode() string {
	return u.doc.ResetCode
}

// PasswordValid reports whether the given password matches the
// account's stored credential.
func (u *User) PasswordValid(password string) bool {
	return auth.PasswordValid(password, u.doc.PasswordHash, u.doc.PasswordSalt)
}

// UpdateLastLogin stamps the account with the current time.
func (u *User) UpdateLastLogin() error {
	now := u.st.nowToTheSecond()
	ops := []txn.Op{{
		C:      usersC,
		Id:     u.doc.DocID,
		Assert: txn.DocExists,
		Update: bson.D{{Name: "$set", Value: bson.D{{Name: "last-login", Value: now}}}},
	}}
	if err := u.st.db.RunTransaction(ops); err != nil {
		return onAbort(err, errors.NotFoundf("user %q", u.doc.Email))
	}
	u.doc.LastLogin = now
	return nil
}

// Refresh reloads the account from the store.
func (u *User) Refresh() error {
	var doc userDoc
	if err := u.st.db.One(usersC, u.doc.DocID, &doc); err != nil {
		return errors.Trace(err)
	}
	u.doc = doc
	return nil
}
