// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package taskstatus defines the closed set of task statuses and the
// legal transitions between them. Statistics and reporting rely on the
// set being closed, so free-form status strings are rejected at the
// boundary.
package taskstatus

import (
	"github.com/juju/errors"
)

// Status is the lifecycle state of a task.
type Status string

const (
	Todo       Status = "todo"
	InProgress Status = "in_progress"
	Done       Status = "done"
	Blocked    Status = "blocked"
)

// transitions holds, per status, the statuses a task may move to.
// Done is terminal.
var transitions = map[Status][]Status{
	Todo:       {InProgress, Blocked},
	InProgress: {Todo, Done, Blocked},
	Blocked:    {Todo, InProgress},
	Done:       {},
}

// IsValid reports whether s is a member of the closed status set.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// Parse returns the Status named by raw.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", errors.NotValidf("task status %q", raw)
	}
	return s, nil
}

// CanTransition reports whether a task may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Transition validates a move from s to next.
func (s Status) Transition(next Status) error {
	if !next.IsValid() {
		return errors.NotValidf("task status %q", string(next))
	}
	if !s.CanTransition(next) {
		return errors.NotValidf("task status transition %q -> %q", string(s), string(next))
	}
	return nil
}
