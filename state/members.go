// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
)

// projectUserDoc is keyed project#user so that joining twice is a
// DocMissing abort rather than a duplicate row.
type projectUserDoc struct {
	DocID     string    `bson:"_id"`
	ID        string    `bson:"id"`
	ProjectID string    `bson:"project-id"`
	UserID    string    `bson:"user-id"`
	JoinedAt  time.Time `bson:"joined-at"`
}

// AddProjectMembers adds the given users to the project. Only the
// creator may add members. Each candidate is processed independently:
// the ones that can join do, and the returned slice describes, in
// order, every candidate that could not (unknown user, the creator
// itself, or an existing member). An error return means nothing was
// attempted.
func (st *State) AddProjectMembers(actorID, projectID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, errors.NotValidf("empty member list")
	}
	p, err := st.Project(projectID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if p.doc.CreatorID != actorID {
		return nil, errors.Unauthorizedf("only the creator may add members to project %q", projectID)
	}

	var failures []string
	for _, userID := range userIDs {
		if userID == p.doc.CreatorID {
			failures = append(failures, errors.Errorf("user %q is the project creator", userID).Error())
			continue
		}
		if _, err := st.userByID(userID); errors.Is(err, errors.NotFound) {
			failures = append(failures, errors.Errorf("user %q not found", userID).Error())
			continue
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		doc := projectUserDoc{
			DocID:     membershipDocID(projectID, userID),
			ID:        newID(),
			ProjectID: projectID,
			UserID:    userID,
			JoinedAt:  st.nowToTheSecond(),
		}
		ops := []txn.Op{{
			C:      projectUsersC,
			Id:     doc.DocID,
			Assert: txn.DocMissing,
			Insert: &doc,
		}}
		if err := st.db.RunTransaction(ops); errors.Cause(err) == txn.ErrAborted {
			failures = append(failures, errors.Errorf("user %q is already a member", userID).Error())
		} else if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return failures, nil
}

// isProjectMember reports whether userID has joined the project. The
// creator is not implicitly a member.
func (st *State) isProjectMember(projectID, userID string) (bool, error) {
	var doc projectUserDoc
	err := st.db.One(projectUsersC, membershipDocID(projectID, userID), &doc)
	if errors.Is(err, errors.NotFound) {
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// ProjectMembers returns the user ids of the project's members, in
// join order.
func (st *State) ProjectMembers(projectID string) ([]string, error) {
	var docs []projectUserDoc
	if err := st.db.All(projectUsersC, bson.D{{Name: "project-id", Value: projectID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.UserID
	}
	return ids, nil
}
