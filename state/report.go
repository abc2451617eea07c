// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	jujutxn "github.com/juju/txn/v3"

	"github.com/teamsync/teamsync/core/taskstatus"
)

// statisticsDoc caches the per-project task counts, keyed by project
// id. last-updated bounds its staleness; reads past the configured
// maximum recompute and write back.
type statisticsDoc struct {
	DocID                string    `bson:"_id"`
	TotalTasks           int       `bson:"total-tasks"`
	CompletedTasks       int       `bson:"completed-tasks"`
	PendingTasks         int       `bson:"pending-tasks"`
	OverdueTasks         int       `bson:"overdue-tasks"`
	CompletionPercentage float64   `bson:"completion-percentage"`
	LastUpdated          time.Time `bson:"last-updated"`
}

// Statistics holds the task counts of one project.
type Statistics struct {
	TotalTasks           int
	CompletedTasks       int
	PendingTasks         int
	OverdueTasks         int
	CompletionPercentage float64
	LastUpdated          time.Time
}

// Report is the project joined with its statistics.
type Report struct {
	ProjectID  string
	Name       string
	Tags       []string
	Statistics Statistics
}

// ProjectReport returns the project's report. Cached statistics are
// served while fresh; a stale or missing cache is recomputed from the
// task collection and written back, with an assert on the previous
// last-updated so concurrent refreshers do not trample each other.
func (st *State) ProjectReport(projectID string) (*Report, error) {
	p, err := st.Project(projectID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	tags, err := p.Tags()
	if err != nil {
		return nil, errors.Trace(err)
	}

	stats, err := st.projectStatistics(projectID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Report{
		ProjectID:  projectID,
		Name:       p.Name(),
		Tags:       tags,
		Statistics: *stats,
	}, nil
}

func (st *State) projectStatistics(projectID string) (*Statistics, error) {
	var cached statisticsDoc
	err := st.db.One(projectStatsC, projectID, &cached)
	if err == nil && st.clock.Now().Sub(cached.LastUpdated) <= st.cfg.StatisticsMaxAge {
		return statisticsFromDoc(cached), nil
	} else if err != nil && !errors.Is(err, errors.NotFound) {
		return nil, errors.Trace(err)
	}

	var fresh statisticsDoc
	buildTxn := func(attempt int) ([]txn.Op, error) {
		computed, err := st.computeStatistics(projectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fresh = *computed

		var current statisticsDoc
		err = st.db.One(projectStatsC, projectID, &current)
		if errors.Is(err, errors.NotFound) {
			return []txn.Op{{
				C:      projectStatsC,
				Id:     projectID,
				Assert: txn.DocMissing,
				Insert: &fresh,
			}}, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if st.clock.Now().Sub(current.LastUpdated) <= st.cfg.StatisticsMaxAge {
			// Someone else refreshed while we were computing.
			fresh = current
			return nil, jujutxn.ErrNoOperations
		}
		return []txn.Op{{
			C:      projectStatsC,
			Id:     projectID,
			Assert: bson.D{{Name: "last-updated", Value: current.LastUpdated}},
			Update: bson.D{{Name: "$set", Value: bson.D{
				{Name: "total-tasks", Value: fresh.TotalTasks},
				{Name: "completed-tasks", Value: fresh.CompletedTasks},
				{Name: "pending-tasks", Value: fresh.PendingTasks},
				{Name: "overdue-tasks", Value: fresh.OverdueTasks},
				{Name: "completion-percentage", Value: fresh.CompletionPercentage},
				{Name: "last-updated", Value: fresh.LastUpdated},
			}}},
		}}, nil
	}
	if err := st.db.Run(buildTxn); err != nil {
		return nil, errors.Trace(err)
	}
	return statisticsFromDoc(fresh), nil
}

// computeStatistics walks the project's tasks. A task is overdue when
// its deadline is set, has passed, and the task is not done. A project
// with no tasks reports zero percent complete.
func (st *State) computeStatistics(projectID string) (*statisticsDoc, error) {
	var docs []taskDoc
	if err := st.db.All(tasksC, bson.D{{Name: "project-id", Value: projectID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	now := st.nowToTheSecond()
	stats := statisticsDoc{
		DocID:       projectID,
		LastUpdated: now,
	}
	for _, doc := range docs {
		stats.TotalTasks++
		done := taskstatus.Status(doc.Status) == taskstatus.Done
		if done {
			stats.CompletedTasks++
		} else {
			stats.PendingTasks++
		}
		if !done && !doc.Deadline.IsZero() && doc.Deadline.Before(now) {
			stats.OverdueTasks++
		}
	}
	if stats.TotalTasks > 0 {
		stats.CompletionPercentage = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return &stats, nil
}

func statisticsFromDoc(doc statisticsDoc) *Statistics {
	return &Statistics{
		TotalTasks:           doc.TotalTasks,
		CompletedTasks:       doc.CompletedTasks,
		PendingTasks:         doc.PendingTasks,
		OverdueTasks:         doc.OverdueTasks,
		CompletionPercentage: doc.CompletionPercentage,
		LastUpdated:          doc.LastUpdated.UTC(),
	}
}
