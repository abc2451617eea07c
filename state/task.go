// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"sort"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	jujutxn "github.com/juju/txn/v3"

	"github.com/teamsync/teamsync/core/taskstatus"
)

// taskDoc holds one task. assignee-id deliberately has no omitempty:
// an unassigned task stores "", which keeps equality asserts against
// the previous assignee well-defined.
type taskDoc struct {
	DocID       string    `bson:"_id"`
	ProjectID   string    `bson:"project-id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description,omitempty"`
	Status      string    `bson:"status"`
	AssigneeID  string    `bson:"assignee-id"`
	Deadline    time.Time `bson:"deadline,omitempty"`
	CreatedAt   time.Time `bson:"created-at"`
	UpdatedAt   time.Time `bson:"updated-at"`
	CreatorID   string    `bson:"creator-id"`
}

// taskHistoryDoc is an append-only audit record. Every mutation of a
// task writes one of these in the same transaction as the change, so
// the history can never disagree with the task.
type taskHistoryDoc struct {
	DocID     string    `bson:"_id"`
	TaskID    string    `bson:"task-id"`
	ProjectID string    `bson:"project-id"`
	Field     string    `bson:"field"`
	OldValue  string    `bson:"old-value"`
	NewValue  string    `bson:"new-value"`
	ChangedBy string    `bson:"changed-by"`
	ChangedAt time.Time `bson:"changed-at"`
	Seq       int64     `bson:"seq"`
}

// Task represents a task in the store.
type Task struct {
	st  *State
	doc taskDoc
}

// TaskChange is one entry of a task's audit history.
type TaskChange struct {
	TaskID    string
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
	ChangedAt time.Time
}

// AddTaskArgs holds the creation parameters for a task.
type AddTaskArgs struct {
	ProjectID   string
	Title       string
	Description string
	AssigneeID  string
	Deadline    time.Time
	Status      taskstatus.Status
}

// AddTask creates a task on a project. The actor must be the project
// creator or a member; the assignee, when given, must be a member or
// the creator. The task and its "created" history record are inserted
// together.
func (st *State) AddTask(actorID string, args AddTaskArgs) (*Task, error) {
	if err := lengthAtLeast(args.Title, 1, "task title"); err != nil {
		return nil, errors.Trace(err)
	}
	status := args.Status
	if status == "" {
		status = taskstatus.Todo
	}
	if !status.IsValid() {
		return nil, errors.NotValidf("task status %q", status)
	}
	p, err := st.Project(args.ProjectID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if ok, err := st.canActOn(p, actorID); err != nil {
		return nil, errors.Trace(err)
	} else if !ok {
		return nil, errors.Unauthorizedf("user %q is not a member of project %q", actorID, args.ProjectID)
	}
	if args.AssigneeID != "" {
		if ok, err := st.canActOn(p, args.AssigneeID); err != nil {
			return nil, errors.Trace(err)
		} else if !ok {
			return nil, errors.NotValidf("assignee %q not in project %q", args.AssigneeID, args.ProjectID)
		}
	}

	now := st.nowToTheSecond()
	doc := taskDoc{
		DocID:       newID(),
		ProjectID:   args.ProjectID,
		Title:       args.Title,
		Description: args.Description,
		Status:      string(status),
		AssigneeID:  args.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatorID:   actorID,
	}
	if !args.Deadline.IsZero() {
		doc.Deadline = args.Deadline.UTC()
	}
	historyOp, err := st.taskHistoryOp(doc.DocID, args.ProjectID, "created", "", doc.Title, actorID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ops := []txn.Op{{
		C:      tasksC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}, historyOp}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, errors.Trace(err)
	}
	return &Task{st: st, doc: doc}, nil
}

func (st *State) taskHistoryOp(taskID, projectID, field, oldValue, newValue, actorID string) (txn.Op, error) {
	seq, err := st.sequence("taskHistory")
	if err != nil {
		return txn.Op{}, errors.Trace(err)
	}
	doc := taskHistoryDoc{
		DocID:     newID(),
		TaskID:    taskID,
		ProjectID: projectID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: actorID,
		ChangedAt: st.nowToTheSecond(),
		Seq:       seq,
	}
	return txn.Op{
		C:      taskHistoryC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}, nil
}

// Task returns the task with the given id.
func (st *State) Task(id string) (*Task, error) {
	task := &Task{st: st}
	err := st.db.One(tasksC, id, &task.doc)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("task %q", id)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return task, nil
}

// AssignTask reassigns the task to assigneeID; an empty assigneeID
// unassigns it. The actor must be able to act on the project and the
// new assignee must be able to as well. The change asserts on the
// previous assignee, so two racing reassignments cannot both win
// silently.
func (st *State) AssignTask(actorID, taskID, assigneeID string) error {
	buildTxn := func(attempt int) ([]txn.Op, error) {
		t, err := st.Task(taskID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p, err := st.Project(t.doc.ProjectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok, err := st.canActOn(p, actorID); err != nil {
			return nil, errors.Trace(err)
		} else if !ok {
			return nil, errors.Unauthorizedf("user %q is not a member of project %q", actorID, p.doc.DocID)
		}
		if assigneeID != "" {
			if ok, err := st.canActOn(p, assigneeID); err != nil {
				return nil, errors.Trace(err)
			} else if !ok {
				return nil, errors.NotValidf("assignee %q not in project %q", assigneeID, p.doc.DocID)
			}
		}
		if t.doc.AssigneeID == assigneeID {
			return nil, jujutxn.ErrNoOperations
		}
		historyOp, err := st.taskHistoryOp(taskID, t.doc.ProjectID, "assigned", t.doc.AssigneeID, assigneeID, actorID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return []txn.Op{{
			C:      tasksC,
			Id:     taskID,
			Assert: bson.D{{Name: "assignee-id", Value: t.doc.AssigneeID}},
			Update: bson.D{{Name: "$set", Value: bson.D{
				{Name: "assignee-id", Value: assigneeID},
				{Name: "updated-at", Value: st.nowToTheSecond()},
			}}},
		}, historyOp}, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// SetTaskStatus moves the task through its status state machine. An
// illegal transition is a NotValid error; the update asserts on the
// previous status so racing movers cannot skip a step.
func (st *State) SetTaskStatus(actorID, taskID string, target taskstatus.Status) error {
	if !target.IsValid() {
		return errors.NotValidf("task status %q", target)
	}
	buildTxn := func(attempt int) ([]txn.Op, error) {
		t, err := st.Task(taskID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p, err := st.Project(t.doc.ProjectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok, err := st.canActOn(p, actorID); err != nil {
			return nil, errors.Trace(err)
		} else if !ok {
			return nil, errors.Unauthorizedf("user %q is not a member of project %q", actorID, p.doc.DocID)
		}
		current := taskstatus.Status(t.doc.Status)
		if current == target {
			return nil, jujutxn.ErrNoOperations
		}
		if err := current.Transition(target); err != nil {
			return nil, errors.Trace(err)
		}
		historyOp, err := st.taskHistoryOp(taskID, t.doc.ProjectID, "status", string(current), string(target), actorID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return []txn.Op{{
			C:      tasksC,
			Id:     taskID,
			Assert: bson.D{{Name: "status", Value: string(current)}},
			Update: bson.D{{Name: "$set", Value: bson.D{
				{Name: "status", Value: string(target)},
				{Name: "updated-at", Value: st.nowToTheSecond()},
			}}},
		}, historyOp}, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// TaskPatch holds the optional-replace fields of a task update.
type TaskPatch struct {
	Title       *string
	Description *string
	Deadline    *time.Time
}

// UpdateTask patches the task's descriptive fields, writing one audit
// record per field that actually changed. A patch that changes nothing
// is a no-op.
func (st *State) UpdateTask(actorID, taskID string, patch TaskPatch) error {
	if patch.Title != nil {
		if err := lengthAtLeast(*patch.Title, 1, "task title"); err != nil {
			return errors.Trace(err)
		}
	}
	buildTxn := func(attempt int) ([]txn.Op, error) {
		t, err := st.Task(taskID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p, err := st.Project(t.doc.ProjectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok, err := st.canActOn(p, actorID); err != nil {
			return nil, errors.Trace(err)
		} else if !ok {
			return nil, errors.Unauthorizedf("user %q is not a member of project %q", actorID, p.doc.DocID)
		}

		fields := bson.D{}
		var ops []txn.Op
		addHistory := func(field, oldValue, newValue string) error {
			op, err := st.taskHistoryOp(taskID, t.doc.ProjectID, field, oldValue, newValue, actorID)
			if err != nil {
				return errors.Trace(err)
			}
			ops = append(ops, op)
			return nil
		}
		if patch.Title != nil && *patch.Title != t.doc.Title {
			fields = append(fields, bson.DocElem{Name: "title", Value: *patch.Title})
			if err := addHistory("title", t.doc.Title, *patch.Title); err != nil {
				return nil, err
			}
		}
		if patch.Description != nil && *patch.Description != t.doc.Description {
			fields = append(fields, bson.DocElem{Name: "description", Value: *patch.Description})
			if err := addHistory("description", t.doc.Description, *patch.Description); err != nil {
				return nil, err
			}
		}
		if patch.Deadline != nil && !patch.Deadline.UTC().Equal(t.doc.Deadline.UTC()) {
			fields = append(fields, bson.DocElem{Name: "deadline", Value: patch.Deadline.UTC()})
			old := ""
			if !t.doc.Deadline.IsZero() {
				old = t.doc.Deadline.UTC().Format(time.RFC3339)
			}
			if err := addHistory("deadline", old, patch.Deadline.UTC().Format(time.RFC3339)); err != nil {
				return nil, err
			}
		}
		if len(fields) == 0 {
			return nil, jujutxn.ErrNoOperations
		}
		fields = append(fields, bson.DocElem{Name: "updated-at", Value: st.nowToTheSecond()})
		ops = append(ops, txn.Op{
			C:      tasksC,
			Id:     taskID,
			Assert: txn.DocExists,
			Update: bson.D{{Name: "$set", Value: fields}},
		})
		return ops, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// RemoveTask deletes the task and its audit history. The actor must be
// able to act on the project.
func (st *State) RemoveTask(actorID, taskID string) error {
	buildTxn := func(attempt int) ([]txn.Op, error) {
		t, err := st.Task(taskID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p, err := st.Project(t.doc.ProjectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ok, err := st.canActOn(p, actorID); err != nil {
			return nil, errors.Trace(err)
		} else if !ok {
			return nil, errors.Unauthorizedf("user %q is not a member of project %q", actorID, p.doc.DocID)
		}
		ops := []txn.Op{{
			C:      tasksC,
			Id:     taskID,
			Assert: txn.DocExists,
			Remove: true,
		}}
		var historyDocs []taskHistoryDoc
		if err := st.db.All(taskHistoryC, bson.D{{Name: "task-id", Value: taskID}}, &historyDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, doc := range historyDocs {
			ops = append(ops, txn.Op{C: taskHistoryC, Id: doc.DocID, Remove: true})
		}
		return ops, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// ProjectTasks returns the project's tasks, oldest first.
func (st *State) ProjectTasks(projectID string) ([]*Task, error) {
	if _, err := st.Project(projectID); err != nil {
		return nil, errors.Trace(err)
	}
	var docs []taskDoc
	if err := st.db.All(tasksC, bson.D{{Name: "project-id", Value: projectID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].DocID < docs[j].DocID
	})
	tasks := make([]*Task, len(docs))
	for i, doc := range docs {
		tasks[i] = &Task{st: st, doc: doc}
	}
	return tasks, nil
}

// TaskHistory returns the task's audit records, oldest first.
func (st *State) TaskHistory(taskID string) ([]TaskChange, error) {
	if _, err := st.Task(taskID); err != nil {
		return nil, errors.Trace(err)
	}
	var docs []taskHistoryDoc
	if err := st.db.All(taskHistoryC, bson.D{{Name: "task-id", Value: taskID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	changes := make([]TaskChange, len(docs))
	for i, doc := range docs {
		changes[i] = TaskChange{
			TaskID:    doc.TaskID,
			Field:     doc.Field,
			OldValue:  doc.OldValue,
			NewValue:  doc.NewValue,
			ChangedBy: doc.ChangedBy,
			ChangedAt: doc.ChangedAt.UTC(),
		}
	}
	return changes, nil
}

// ID returns the task's entity identifier.
func (t *Task) ID() string {
	return t.doc.DocID
}

// ProjectID returns the id of the project the task belongs to.
func (t *Task) ProjectID() string {
	return t.doc.ProjectID
}

// Title returns the task title.
func (t *Task) Title() string {
	return t.doc.Title
}

// Description returns the task description.
func (t *Task) Description() string {
	return t.doc.Description
}

// Status returns the task's current status.
func (t *Task) Status() taskstatus.Status {
	return taskstatus.Status(t.doc.Status)
}

// AssigneeID returns the id of the assigned user, empty when the task
// is unassigned.
func (t *Task) AssigneeID() string {
	return t.doc.AssigneeID
}

// Deadline returns the task deadline, zero when none is set.
func (t *Task) Deadline() time.Time {
	if t.doc.Deadline.IsZero() {
		return time.Time{}
	}
	return t.doc.Deadline.UTC()
}

// CreatorID returns the id of the user who created the task.
func (t *Task) CreatorID() string {
	return t.doc.CreatorID
}

// Refresh reloads the task from the store.
func (t *Task) Refresh() error {
	var doc taskDoc
	if err := t.st.db.One(tasksC, t.doc.DocID, &doc); err != nil {
		return errors.Trace(err)
	}
	t.doc = doc
	return nil
}
