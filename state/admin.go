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

// Admins live in their own collection: the admin identity space is
// disjoint from users, and an email may appear in both.
type adminDoc struct {
	DocID        string    `bson:"_id"`
	ID           string    `bson:"id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password-hash"`
	PasswordSalt string    `bson:"password-salt"`
	CreatedAt    time.Time `bson:"created-at"`
	LastLogin    time.Time `bson:"last-login,omitempty"`
}

// Admin represents a reviewer account.
type Admin struct {
	st  *State
	doc adminDoc
}

// AddAdmin creates a reviewer account.
func (st *State) AddAdmin(name, email, password string) (*Admin, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.NotValidf("empty name")
	}
	if !validEmail(email) {
		return nil, errors.NotValidf("email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.NotValidf("password shorter than 8 characters")
	}
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Trace(err)
	}
	doc := adminDoc{
		DocID:        strings.ToLower(email),
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    st.nowToTheSecond(),
	}
	ops := []txn.Op{{
		C:      adminsC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, onAbort(err, errors.AlreadyExistsf("admin with email %q", email))
	}
	return &Admin{st: st, doc: doc}, nil
}

// Admin returns the reviewer account registered under email.
func (st *State) Admin(email string) (*Admin, error) {
	admin := &Admin{st: st}
	err := st.db.One(adminsC, strings.ToLower(email), &admin.doc)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("admin %q", email)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return admin, nil
}

func (st *State) adminByID(id string) (*Admin, error) {
	var docs []adminDoc
	if err := st.db.All(adminsC, bson.D{{Name: "id", Value: id}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	if len(docs) == 0 {
		return nil, errors.NotFoundf("admin %q", id)
	}
	return &Admin{st: st, doc: docs[0]}, nil
}

// LoginAdmin authenticates an admin and records the login time.
func (st *State) LoginAdmin(email, password string) (*Admin, error) {
	if !validEmail(email) {
		return nil, errors.NotValidf("email %q", email)
	}
	if len(password) < 2 {
		return nil, errors.NotValidf("password shorter than 2 characters")
	}
	a, err := st.Admin(email)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !a.PasswordValid(password) {
		return nil, errors.Unauthorizedf("password does not match")
	}
	if err := a.UpdateLastLogin(); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

// ID returns the admin's entity identifier.
func (a *Admin) ID() string {
	return a.doc.ID
}

// Name returns the admin's display name.
func (a *Admin) Name() string {
	return a.doc.Name
}

// Email returns the admin's email address.
func (a *Admin) Email() string {
	return a.doc.Email
}

// PasswordValid reports whether the given password matches the
// admin's stored credential.
func (a *Admin) PasswordValid(password string) bool {
	return auth.PasswordValid(password, a.doc.PasswordHash, a.doc.PasswordSalt)
}

// UpdateLastLogin stamps the admin with the current time.
func (a *Admin) UpdateLastLogin() error {
	now := a.st.nowToTheSecond()
	ops := []txn.Op{{
		C:      adminsC,
		Id:     a.doc.DocID,
		Assert: txn.DocExists,
		Update: bson.D{{Name: "$set", Value: bson.D{{Name: "last-login", Value: now}}}},
	}}
	if err := a.st.db.RunTransaction(ops); err != nil {
		return onAbort(err, errors.NotFoundf("admin %q", a.doc.Email))
	}
	a.doc.LastLogin = now
	return nil
}
