// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package taskstatus_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/teamsync/teamsync/core/taskstatus"
)

type statusSuite struct{}

var _ = gc.Suite(&statusSuite{})

func (*statusSuite) TestParse(c *gc.C) {
	for _, raw := range []string{"todo", "in_progress", "done", "blocked"} {
		s, err := taskstatus.Parse(raw)
		c.Assert(err, jc.ErrorIsNil)
		c.Assert(string(s), gc.Equals, raw)
	}
}

func (*statusSuite) TestParseRejectsFreeForm(c *gc.C) {
	for _, raw := range []string{"", "TODO", "doing", "in-progress", "finished"} {
		c.Logf("parsing %q", raw)
		_, err := taskstatus.Parse(raw)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (*statusSuite) TestLegalTransitions(c *gc.C) {
	legal := []struct{ from, to taskstatus.Status }{
		{taskstatus.Todo, taskstatus.InProgress},
		{taskstatus.Todo, taskstatus.Blocked},
		{taskstatus.InProgress, taskstatus.Done},
		{taskstatus.InProgress, taskstatus.Blocked},
		{taskstatus.InProgress, taskstatus.Todo},
		{taskstatus.Blocked, taskstatus.Todo},
		{taskstatus.Blocked, taskstatus.InProgress},
	}
	for _, t := range legal {
		c.Check(t.from.Transition(t.to), jc.ErrorIsNil)
	}
}

func (*statusSuite) TestDoneIsTerminal(c *gc.C) {
	for _, to := range []taskstatus.Status{taskstatus.Todo, taskstatus.InProgress, taskstatus.Blocked} {
		err := taskstatus.Done.Transition(to)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (*statusSuite) TestSkippingTodoToDone(c *gc.C) {
	err := taskstatus.Todo.Transition(taskstatus.Done)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}
