// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"sort"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
)

// Approval decision values.
const (
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// approvalDoc is an append-only record of one admin decision. Seq
// orders decisions taken within the same second.
type approvalDoc struct {
	DocID        string    `bson:"_id"`
	ProjectID    string    `bson:"project-id"`
	AdminID      string    `bson:"admin-id"`
	ApprovalDate time.Time `bson:"approval-date"`
	Status       string    `bson:"status"`
	Seq          int64     `bson:"seq"`
}

// Approval is one recorded admin decision on a project.
type Approval struct {
	ID           string
	ProjectID    string
	AdminID      string
	ApprovalDate time.Time
	Status       string
}

// RecordDecision records an admin's approve/reject decision on the
// project and flips the project's approval flag to match, both in the
// same transaction. Decisions accumulate; the flag always reflects the
// latest one.
func (st *State) RecordDecision(adminID, projectID, status string) (*Approval, error) {
	if status != ApprovalApproved && status != ApprovalRejected {
		return nil, errors.NotValidf("approval status %q", status)
	}
	if _, err := st.adminByID(adminID); err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := st.Project(projectID); err != nil {
		return nil, errors.Trace(err)
	}
	seq, err := st.sequence("approvals")
	if err != nil {
		return nil, errors.Trace(err)
	}
	doc := approvalDoc{
		DocID:        newID(),
		ProjectID:    projectID,
		AdminID:      adminID,
		ApprovalDate: st.nowToTheSecond(),
		Status:       status,
		Seq:          seq,
	}
	ops := []txn.Op{{
		C:      projectApprovalsC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}, {
		C:      projectsC,
		Id:     projectID,
		Assert: txn.DocExists,
		Update: bson.D{{Name: "$set", Value: bson.D{{Name: "is-approved", Value: status == ApprovalApproved}}}},
	}}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, onAbort(err, errors.NotFoundf("project %q", projectID))
	}
	return &Approval{
		ID:           doc.DocID,
		ProjectID:    doc.ProjectID,
		AdminID:      doc.AdminID,
		ApprovalDate: doc.ApprovalDate,
		Status:       doc.Status,
	}, nil
}

// ApprovalHistory returns every decision recorded against the project,
// oldest first.
func (st *State) ApprovalHistory(projectID string) ([]Approval, error) {
	if _, err := st.Project(projectID); err != nil {
		return nil, errors.Trace(err)
	}
	var docs []approvalDoc
	if err := st.db.All(projectApprovalsC, bson.D{{Name: "project-id", Value: projectID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	approvals := make([]Approval, len(docs))
	for i, doc := range docs {
		approvals[i] = Approval{
			ID:           doc.DocID,
			ProjectID:    doc.ProjectID,
			AdminID:      doc.AdminID,
			ApprovalDate: doc.ApprovalDate.UTC(),
			Status:       doc.Status,
		}
	}
	return approvals, nil
}
