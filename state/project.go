// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"sort"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
)

type projectDoc struct {
	DocID       string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created-at"`
	UpdatedAt   time.Time `bson:"updated-at"`
	Deadline    time.Time `bson:"deadline"`
	CreatorID   string    `bson:"creator-id"`
	IsApproved  bool      `bson:"is-approved"`
}

// projectNameDoc reserves a project name. Inserting it with a
// DocMissing assert is what makes name uniqueness race-free; renames
// swap the reservation inside the update transaction.
type projectNameDoc struct {
	DocID     string `bson:"_id"`
	ProjectID string `bson:"project-id"`
}

// tagDoc is keyed project#tag (lowercased), giving each project at
// most one tag of a given name.
type tagDoc struct {
	DocID          string    `bson:"_id"`
	ID             string    `bson:"id"`
	ProjectID      string    `bson:"project-id"`
	TagID          string    `bson:"tag-id"`
	TagName        string    `bson:"tag-name"`
	TagDescription string    `bson:"tag-description,omitempty"`
	TaggedAt       time.Time `bson:"tagged-at"`
}

// Project represents a project in the store.
type Project struct {
	st  *State
	doc projectDoc
}

// AddProjectArgs holds the creation parameters. The deadline has
// already been parsed from its wire form.
type AddProjectArgs struct {
	Name        string
	Description string
	Deadline    time.Time
	Tags        []string
}

// AddProject creates a project owned by creatorID, with is_approved
// unset until an admin decides otherwise. The project and all its tags
// are inserted in one transaction: either the whole creation lands or
// none of it does.
func (st *State) AddProject(creatorID string, args AddProjectArgs) (*Project, error) {
	if err := lengthAtLeast(args.Name, 4, "project name"); err != nil {
		return nil, errors.Trace(err)
	}
	if err := lengthAtLeast(args.Description, 4, "project description"); err != nil {
		return nil, errors.Trace(err)
	}
	if args.Deadline.IsZero() {
		return nil, errors.NotValidf("missing deadline")
	}
	tags, err := normalizeTags(args.Tags)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := st.userByID(creatorID); err != nil {
		return nil, errors.Trace(err)
	}

	now := st.nowToTheSecond()
	doc := projectDoc{
		DocID:       newID(),
		Name:        args.Name,
		Description: args.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Deadline:    args.Deadline.UTC(),
		CreatorID:   creatorID,
	}
	ops := []txn.Op{{
		C:      projectsC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}, {
		C:      projectNamesC,
		Id:     strings.ToLower(args.Name),
		Assert: txn.DocMissing,
		Insert: &projectNameDoc{DocID: strings.ToLower(args.Name), ProjectID: doc.DocID},
	}}
	for _, tag := range tags {
		ops = append(ops, st.insertTagOp(doc.DocID, tag))
	}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, onAbort(err, errors.AlreadyExistsf("project %q", args.Name))
	}
	return &Project{st: st, doc: doc}, nil
}

func (st *State) insertTagOp(projectID, tagName string) txn.Op {
	doc := tagDoc{
		DocID:     tagDocID(projectID, tagName),
		ID:        newID(),
		ProjectID: projectID,
		TagID:     newID(),
		TagName:   tagName,
		TaggedAt:  st.nowToTheSecond(),
	}
	return txn.Op{
		C:      projectTagsC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}
}

// normalizeTags rejects empty tag names and drops duplicates while
// keeping the caller's order for the survivors.
func normalizeTags(tags []string) ([]string, error) {
	seen := set.NewStrings()
	var out []string
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return nil, errors.NotValidf("empty tag name")
		}
		key := strings.ToLower(tag)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		out = append(out, tag)
	}
	return out, nil
}

// Project returns the project with the given id.
func (st *State) Project(id string) (*Project, error) {
	project := &Project{st: st}
	err := st.db.One(projectsC, id, &project.doc)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("project %q", id)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return project, nil
}

// ProjectPatch holds the optional-replace fields of an update. Nil
// fields are untouched; Tags are appended.
type ProjectPatch struct {
	Name        *string
	Description *string
	Deadline    *time.Time
	Tags        []string
}

// UpdateProject applies patch to the project. Only the creator may
// update. The update is atomic: a name collision or a tag that is
// already on the project aborts the whole patch, so callers never see
// half of one applied. updated_at is refreshed on success.
func (st *State) UpdateProject(actorID, projectID string, patch ProjectPatch) error {
	if patch.Name != nil {
		if err := lengthAtLeast(*patch.Name, 4, "project name"); err != nil {
			return errors.Trace(err)
		}
	}
	if patch.Description != nil {
		if err := lengthAtLeast(*patch.Description, 4, "project description"); err != nil {
			return errors.Trace(err)
		}
	}
	if patch.Deadline != nil && patch.Deadline.IsZero() {
		return errors.NotValidf("missing deadline")
	}
	tags, err := normalizeTags(patch.Tags)
	if err != nil {
		return errors.Trace(err)
	}

	buildTxn := func(attempt int) ([]txn.Op, error) {
		p, err := st.Project(projectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if p.doc.CreatorID != actorID {
			return nil, errors.Unauthorizedf("only the creator may update project %q", projectID)
		}

		fields := bson.D{{Name: "updated-at", Value: st.nowToTheSecond()}}
		var ops []txn.Op
		if patch.Name != nil && *patch.Name != p.doc.Name {
			newKey := strings.ToLower(*patch.Name)
			oldKey := strings.ToLower(p.doc.Name)
			if newKey != oldKey {
				var existing projectNameDoc
				err := st.db.One(projectNamesC, newKey, &existing)
				if err == nil {
					return nil, errors.AlreadyExistsf("project %q", *patch.Name)
				} else if !errors.Is(err, errors.NotFound) {
					return nil, errors.Trace(err)
				}
				ops = append(ops, txn.Op{
					C:      projectNamesC,
					Id:     oldKey,
					Assert: txn.DocExists,
					Remove: true,
				}, txn.Op{
					C:      projectNamesC,
					Id:     newKey,
					Assert: txn.DocMissing,
					Insert: &projectNameDoc{DocID: newKey, ProjectID: projectID},
				})
			}
			fields = append(fields, bson.DocElem{Name: "name", Value: *patch.Name})
		}
		if patch.Description != nil {
			fields = append(fields, bson.DocElem{Name: "description", Value: *patch.Description})
		}
		if patch.Deadline != nil {
			fields = append(fields, bson.DocElem{Name: "deadline", Value: patch.Deadline.UTC()})
		}
		for _, tag := range tags {
			var existing tagDoc
			err := st.db.One(projectTagsC, tagDocID(projectID, tag), &existing)
			if err == nil {
				return nil, errors.AlreadyExistsf("tag %q on project %q", tag, projectID)
			} else if !errors.Is(err, errors.NotFound) {
				return nil, errors.Trace(err)
			}
			ops = append(ops, st.insertTagOp(projectID, tag))
		}
		ops = append(ops, txn.Op{
			C:      projectsC,
			Id:     projectID,
			Assert: txn.DocExists,
			Update: bson.D{{Name: "$set", Value: fields}},
		})
		return ops, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// RemoveProject deletes the project and everything it owns: name
// reservation, tags, memberships, tasks and their history, comments,
// approvals and cached statistics, all in one transaction. Only the
// creator may remove a project.
func (st *State) RemoveProject(actorID, projectID string) error {
	buildTxn := func(attempt int) ([]txn.Op, error) {
		p, err := st.Project(projectID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if p.doc.CreatorID != actorID {
			return nil, errors.Unauthorizedf("only the creator may remove project %q", projectID)
		}

		ops := []txn.Op{{
			C:      projectsC,
			Id:     projectID,
			Assert: txn.DocExists,
			Remove: true,
		}, {
			C:      projectNamesC,
			Id:     strings.ToLower(p.doc.Name),
			Remove: true,
		}, {
			C:      projectStatsC,
			Id:     projectID,
			Remove: true,
		}}

		byProject := bson.D{{Name: "project-id", Value: projectID}}
		var tagDocs []tagDoc
		if err := st.db.All(projectTagsC, byProject, &tagDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, doc := range tagDocs {
			ops = append(ops, txn.Op{C: projectTagsC, Id: doc.DocID, Remove: true})
		}
		var memberDocs []projectUserDoc
		if err := st.db.All(projectUsersC, byProject, &memberDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, doc := range memberDocs {
			ops = append(ops, txn.Op{C: projectUsersC, Id: doc.DocID, Remove: true})
		}
		var approvalDocs []approvalDoc
		if err := st.db.All(projectApprovalsC, byProject, &approvalDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, doc := range approvalDocs {
			ops = append(ops, txn.Op{C: projectApprovalsC, Id: doc.DocID, Remove: true})
		}
		var commentDocs []commentDoc
		if err := st.db.All(commentsC, byProject, &commentDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, doc := range commentDocs {
			ops = append(ops, txn.Op{C: commentsC, Id: doc.DocID, Remove: true})
		}
		var taskDocs []taskDoc
		if err := st.db.All(tasksC, byProject, &taskDocs); err != nil {
			return nil, errors.Trace(err)
		}
		for _, task := range taskDocs {
			ops = append(ops, txn.Op{C: tasksC, Id: task.DocID, Remove: true})
			var historyDocs []taskHistoryDoc
			if err := st.db.All(taskHistoryC, bson.D{{Name: "task-id", Value: task.DocID}}, &historyDocs); err != nil {
				return nil, errors.Trace(err)
			}
			for _, event := range historyDocs {
				ops = append(ops, txn.Op{C: taskHistoryC, Id: event.DocID, Remove: true})
			}
		}
		return ops, nil
	}
	return errors.Trace(st.db.Run(buildTxn))
}

// ID returns the project's entity identifier.
func (p *Project) ID() string {
	return p.doc.DocID
}

// Name returns the project name.
func (p *Project) Name() string {
	return p.doc.Name
}

// Description returns the project description.
func (p *Project) Description() string {
	return p.doc.Description
}

// Deadline returns the project deadline in UTC.
func (p *Project) Deadline() time.Time {
	return p.doc.Deadline.UTC()
}

// CreatorID returns the id of the user who created the project.
func (p *Project) CreatorID() string {
	return p.doc.CreatorID
}

// IsApproved reports the outcome of the most recent admin decision,
// false while no decision has been made.
func (p *Project) IsApproved() bool {
	return p.doc.IsApproved
}

// UpdatedAt returns the time of the last successful update, in UTC.
func (p *Project) UpdatedAt() time.Time {
	return p.doc.UpdatedAt.UTC()
}

// Refresh reloads the project from the store.
func (p *Project) Refresh() error {
	var doc projectDoc
	if err := p.st.db.One(projectsC, p.doc.DocID, &doc); err != nil {
		return errors.Trace(err)
	}
	p.doc = doc
	return nil
}

// Tags returns the names of the project's tags, sorted.
func (p *Project) Tags() ([]string, error) {
	var docs []tagDoc
	if err := p.st.db.All(projectTagsC, bson.D{{Name: "project-id", Value: p.doc.DocID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	names := set.NewStrings()
	for _, doc := range docs {
		names.Add(doc.TagName)
	}
	return names.SortedValues(), nil
}

// ProjectInfo is a project joined with its tag names, as returned by
// the listing operations.
type ProjectInfo struct {
	ID          string
	Name        string
	Description string
	Deadline    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatorID   string
	IsApproved  bool
	Tags        []string
}

// ProjectsCreatedBy lists the projects created by the given user,
// each joined with its tag names.
func (st *State) ProjectsCreatedBy(userID string) ([]ProjectInfo, error) {
	var docs []projectDoc
	if err := st.db.All(projectsC, bson.D{{Name: "creator-id", Value: userID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	return st.projectInfos(docs)
}

// ProjectsAssignedTo lists the projects the given user has joined as
// a member, each joined with its tag names.
func (st *State) ProjectsAssignedTo(userID string) ([]ProjectInfo, error) {
	var memberships []projectUserDoc
	if err := st.db.All(projectUsersC, bson.D{{Name: "user-id", Value: userID}}, &memberships); err != nil {
		return nil, errors.Trace(err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	ids := make([]string, len(memberships))
	for i, doc := range memberships {
		ids[i] = doc.ProjectID
	}
	var docs []projectDoc
	if err := st.db.All(projectsC, bson.D{{Name: "_id", Value: bson.D{{Name: "$in", Value: ids}}}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	return st.projectInfos(docs)
}

func (st *State) projectInfos(docs []projectDoc) ([]ProjectInfo, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.DocID
	}
	var tagDocs []tagDoc
	if err := st.db.All(projectTagsC, bson.D{{Name: "project-id", Value: bson.D{{Name: "$in", Value: ids}}}}, &tagDocs); err != nil {
		return nil, errors.Trace(err)
	}
	tagsByProject := make(map[string]set.Strings)
	for _, doc := range tagDocs {
		if _, ok := tagsByProject[doc.ProjectID]; !ok {
			tagsByProject[doc.ProjectID] = set.NewStrings()
		}
		tagsByProject[doc.ProjectID].Add(doc.TagName)
	}

	infos := make([]ProjectInfo, len(docs))
	for i, doc := range docs {
		info := ProjectInfo{
			ID:          doc.DocID,
			Name:        doc.Name,
			Description: doc.Description,
			Deadline:    doc.Deadline.UTC(),
			CreatedAt:   doc.CreatedAt.UTC(),
			UpdatedAt:   doc.UpdatedAt.UTC(),
			CreatorID:   doc.CreatorID,
			IsApproved:  doc.IsApproved,
		}
		if tags, ok := tagsByProject[doc.DocID]; ok {
			info.Tags = tags.SortedValues()
		}
		infos[i] = info
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// canActOn reports whether userID may act on the project: its creator
// and its members can.
func (st *State) canActOn(p *Project, userID string) (bool, error) {
	if p.doc.CreatorID == userID {
		return true, nil
	}
	return st.isProjectMember(p.doc.DocID, userID)
}
