// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package state implements the TeamSync entity store and the domain
// operations over it: accounts, projects, tags, membership, approvals,
// tasks with audit history, comments and reporting. All documents live
// in a MongoDB-style document store reached through the Database
// interface; every cross-document invariant is enforced with
// transaction operations and asserts rather than read-then-write.
package state

import (
	"net/mail"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	jujutxn "github.com/juju/txn/v3"
	"github.com/juju/utils/v4"
)

var logger = loggo.GetLogger("teamsync.state")

// Collection names.
const (
	usersC            = "users"
	adminsC           = "admins"
	projectsC         = "projects"
	projectNamesC     = "projectNames"
	projectTagsC      = "projectTags"
	projectUsersC     = "projectUsers"
	projectApprovalsC = "projectApprovals"
	tasksC            = "tasks"
	taskHistoryC      = "taskHistory"
	commentsC         = "comments"
	projectStatsC     = "projectStatistics"
	sequencesC        = "sequences"
)

// Database is the narrow CRUD/query/transaction surface the state
// layer needs from the document store. The production implementation
// wraps mgo; tests use an in-memory implementation with the same
// transaction semantics.
type Database interface {
	// One fetches the document with the given _id into doc,
	// returning a NotFound error when absent.
	One(collection, id string, doc interface{}) error

	// All fetches every document matching query into docs, which
	// must be a pointer to a slice.
	All(collection string, query bson.D, docs interface{}) error

	// RunTransaction runs ops as a single transaction, returning
	// txn.ErrAborted if any assert fails.
	RunTransaction(ops []txn.Op) error

	// Run builds and runs a transaction, rebuilding it via the
	// supplied source whenever an assert fails.
	Run(transactions jujutxn.TransactionSource) error
}

// Config holds the tunables of the state layer.
type Config struct {
	// RequireRegisterCode makes AddUser demand a 6-digit
	// registration code. Off by default; there is a single code
	// path either way.
	RequireRegisterCode bool

	// StatisticsMaxAge bounds how stale a cached project statistics
	// document may be before a read recomputes it.
	StatisticsMaxAge time.Duration
}

const defaultStatisticsMaxAge = time.Minute

// State gives access to the TeamSync entities held in the store.
type State struct {
	db    Database
	clock clock.Clock
	cfg   Config
}

// New returns a State reading and writing through db, telling time
// with clk.
func New(db Database, clk clock.Clock, cfg Config) *State {
	if cfg.StatisticsMaxAge <= 0 {
		cfg.StatisticsMaxAge = defaultStatisticsMaxAge
	}
	return &State{db: db, clock: clk, cfg: cfg}
}

// nowToTheSecond returns the current time, rounded to the nearest
// second, in UTC. Stored timestamps never carry sub-second precision.
func (st *State) nowToTheSecond() time.Time {
	return st.clock.Now().Round(time.Second).UTC()
}

func newID() string {
	return utils.MustNewUUID().String()
}

func membershipDocID(projectID, userID string) string {
	return projectID + "#" + userID
}

func tagDocID(projectID, tagName string) string {
	return projectID + "#" + strings.ToLower(tagName)
}

// onAbort maps a transaction abort onto a domain error, passing any
// other error through.
func onAbort(txnErr, err error) error {
	if errors.Cause(txnErr) == txn.ErrAborted {
		return errors.Trace(err)
	}
	return errors.Trace(txnErr)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return strings.Contains(email[at+1:], ".")
}

type sequenceDoc struct {
	DocID   string `bson:"_id"`
	Counter int64  `bson:"counter"`
}

// sequence returns the next value of the named monotonic counter.
// Counters order append-only records (history, approvals, comments)
// deterministically even when two writes land in the same second.
func (st *State) sequence(name string) (int64, error) {
	var result int64
	buildTxn := func(attempt int) ([]txn.Op, error) {
		var doc sequenceDoc
		err := st.db.One(sequencesC, name, &doc)
		if errors.Is(err, errors.NotFound) {
			result = 0
			return []txn.Op{{
				C:      sequencesC,
				Id:     name,
				Assert: txn.DocMissing,
				Insert: &sequenceDoc{DocID: name, Counter: 1},
			}}, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		result = doc.Counter
		return []txn.Op{{
			C:      sequencesC,
			Id:     name,
			Assert: bson.D{{Name: "counter", Value: doc.Counter}},
			Update: bson.D{{Name: "$set", Value: bson.D{{Name: "counter", Value: doc.Counter + 1}}}},
		}}, nil
	}
	if err := st.db.Run(buildTxn); err != nil {
		return 0, errors.Annotatef(err, "cannot increment sequence %q", name)
	}
	return result, nil
}

func lengthAtLeast(s string, n int, what string) error {
	if len(strings.TrimSpace(s)) < n {
		return errors.NotValidf("%s shorter than %d characters", what, n)
	}
	return nil
}
