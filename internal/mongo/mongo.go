// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mongo implements the state.Database interface over a live
// MongoDB via mgo, with multi-document transactions run through the
// juju/txn runner.
package mongo

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	jujutxn "github.com/juju/txn/v3"
)

var logger = loggo.GetLogger("teamsync.mongo")

const dialTimeout = 30 * time.Second

// DialInfo names a MongoDB deployment.
type DialInfo struct {
	// Addrs lists the seed servers, host:port.
	Addrs []string

	// Database is the database holding all TeamSync collections.
	Database string

	// Username and Password are optional credentials.
	Username string
	Password string
}

// Store is an mgo-backed Database.
type Store struct {
	session *mgo.Session
	db      *mgo.Database
	runner  jujutxn.Runner
}

// Dial connects to the deployment described by info and returns a
// Store ready for use.
func Dial(info DialInfo) (*Store, error) {
	if len(info.Addrs) == 0 {
		return nil, errors.NotValidf("empty address list")
	}
	if info.Database == "" {
		return nil, errors.NotValidf("empty database name")
	}
	logger.Infof("dialling mongo at %v", info.Addrs)
	session, err := mgo.DialWithInfo(&mgo.DialInfo{
		Addrs:    info.Addrs,
		Database: info.Database,
		Username: info.Username,
		Password: info.Password,
		Timeout:  dialTimeout,
	})
	if err != nil {
		return nil, errors.Annotate(err, "cannot dial mongo")
	}
	session.SetMode(mgo.Strong, true)
	db := session.DB(info.Database)
	runner := jujutxn.NewRunner(jujutxn.RunnerParams{Database: db})
	return &Store{session: session, db: db, runner: runner}, nil
}

// Close releases the underlying session.
func (s *Store) Close() {
	s.session.Close()
}

// One fetches the document with the given _id into doc.
func (s *Store) One(collection, id string, doc interface{}) error {
	err := s.db.C(collection).FindId(id).One(doc)
	if err == mgo.ErrNotFound {
		return errors.NotFoundf("document %q in collection %q", id, collection)
	} else if err != nil {
		return errors.Trace(err)
	}
	return nil
}

// All fetches every document matching query into docs.
func (s *Store) All(collection string, query bson.D, docs interface{}) error {
	if err := s.db.C(collection).Find(query).All(docs); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// RunTransaction runs ops as a single transaction.
func (s *Store) RunTransaction(ops []txn.Op) error {
	return s.runner.RunTransaction(&jujutxn.Transaction{Ops: ops})
}

// Run builds and runs a transaction, retrying via the source on
// assert failure.
func (s *Store) Run(transactions jujutxn.TransactionSource) error {
	return s.runner.Run(transactions)
}
