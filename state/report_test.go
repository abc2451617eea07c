// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state_test

import (
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/teamsync/teamsync/core/taskstatus"
	"github.com/teamsync/teamsync/state"
)

type reportSuite struct {
	baseSuite
	owner   *state.User
	project *state.Project
}

var _ = gc.Suite(&reportSuite{})

func (s *reportSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.owner = s.addUser(c, "alice", "alice@example.com")
	s.project = s.addProject(c, s.owner.ID(), "orbital", "go")
}

func (s *reportSuite) addTask(c *gc.C, title string, deadline time.Time) *state.Task {
	task, err := s.st.AddTask(s.owner.ID(), state.AddTaskArgs{
		ProjectID: s.project.ID(),
		Title:     title,
		Deadline:  deadline,
	})
	c.Assert(err, jc.ErrorIsNil)
	return task
}

func (s *reportSuite) complete(c *gc.C, task *state.Task) {
	c.Assert(s.st.SetTaskStatus(s.owner.ID(), task.ID(), taskstatus.InProgress), jc.ErrorIsNil)
	c.Assert(s.st.SetTaskStatus(s.owner.ID(), task.ID(), taskstatus.Done), jc.ErrorIsNil)
}

func (s *reportSuite) TestReportNoTasks(c *gc.C) {
	report, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Name, gc.Equals, "orbital")
	c.Assert(report.Tags, gc.DeepEquals, []string{"go"})
	c.Assert(report.Statistics.TotalTasks, gc.Equals, 0)
	c.Assert(report.Statistics.CompletionPercentage, gc.Equals, 0.0)
}

func (s *reportSuite) TestReportCounts(c *gc.C) {
	done := s.addTask(c, "done already", time.Time{})
	s.complete(c, done)
	s.addTask(c, "still pending", time.Time{})
	s.addTask(c, "overdue", s.clock.Now().Add(-24*time.Hour))
	lateButDone := s.addTask(c, "late but done", s.clock.Now().Add(-24*time.Hour))
	s.complete(c, lateButDone)

	report, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	stats := report.Statistics
	c.Assert(stats.TotalTasks, gc.Equals, 4)
	c.Assert(stats.CompletedTasks, gc.Equals, 2)
	c.Assert(stats.PendingTasks, gc.Equals, 2)
	// A done task past its deadline is not overdue.
	c.Assert(stats.OverdueTasks, gc.Equals, 1)
	c.Assert(stats.CompletionPercentage, gc.Equals, 50.0)
}

func (s *reportSuite) TestReportCachedWhileFresh(c *gc.C) {
	report, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Statistics.TotalTasks, gc.Equals, 0)

	s.addTask(c, "new task", time.Time{})

	// Within the staleness window the cached counts are served.
	report, err = s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Statistics.TotalTasks, gc.Equals, 0)
}

func (s *reportSuite) TestReportRecomputedWhenStale(c *gc.C) {
	_, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)

	s.addTask(c, "new task", time.Time{})
	s.clock.Advance(2 * time.Minute)

	report, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Statistics.TotalTasks, gc.Equals, 1)
	c.Assert(report.Statistics.LastUpdated, gc.Equals, s.clock.Now().Round(time.Second).UTC())
}

func (s *reportSuite) TestReportStalenessWindowConfigurable(c *gc.C) {
	s.st = state.New(s.db, s.clock, state.Config{StatisticsMaxAge: time.Hour})

	_, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	s.addTask(c, "new task", time.Time{})
	s.clock.Advance(30 * time.Minute)

	report, err := s.st.ProjectReport(s.project.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Statistics.TotalTasks, gc.Equals, 0)
}

func (s *reportSuite) TestReportUnknownProject(c *gc.C) {
	_, err := s.st.ProjectReport("no-such-project")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}
