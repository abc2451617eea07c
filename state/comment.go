// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"sort"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
)

// commentDoc holds one project comment and, optionally, the metadata
// of a single attached file. Only metadata is stored; file content
// lives wherever the upload channel put it.
type commentDoc struct {
	DocID     string    `bson:"_id"`
	ProjectID string    `bson:"project-id"`
	AuthorID  string    `bson:"author-id"`
	Content   string    `bson:"content"`
	FileName  string    `bson:"file-name,omitempty"`
	FilePath  string    `bson:"file-path,omitempty"`
	FileSize  int64     `bson:"file-size,omitempty"`
	FileType  string    `bson:"file-type,omitempty"`
	CreatedAt time.Time `bson:"created-at"`
	Seq       int64     `bson:"seq"`
}

// FileMetadata describes a file attached to a comment.
type FileMetadata struct {
	Name string
	Path string
	Size int64
	Type string
}

// Comment is one comment on a project.
type Comment struct {
	ID        string
	ProjectID string
	AuthorID  string
	Content   string
	File      *FileMetadata
	CreatedAt time.Time
}

// AddComment records a comment by authorID on the project, with
// optional attached-file metadata. The author must be the project
// creator or a member.
func (st *State) AddComment(authorID, projectID, content string, file *FileMetadata) (*Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.NotValidf("empty comment")
	}
	p, err := st.Project(projectID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if ok, err := st.canActOn(p, authorID); err != nil {
		return nil, errors.Trace(err)
	} else if !ok {
		return nil, errors.Unauthorizedf("user %q is not a member of project %q", authorID, projectID)
	}
	seq, err := st.sequence("comments")
	if err != nil {
		return nil, errors.Trace(err)
	}
	doc := commentDoc{
		DocID:     newID(),
		ProjectID: projectID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: st.nowToTheSecond(),
		Seq:       seq,
	}
	if file != nil {
		doc.FileName = file.Name
		doc.FilePath = file.Path
		doc.FileSize = file.Size
		doc.FileType = file.Type
	}
	ops := []txn.Op{{
		C:      commentsC,
		Id:     doc.DocID,
		Assert: txn.DocMissing,
		Insert: &doc,
	}}
	if err := st.db.RunTransaction(ops); err != nil {
		return nil, errors.Trace(err)
	}
	return commentFromDoc(doc), nil
}

// ProjectComments returns the project's comments, oldest first.
func (st *State) ProjectComments(projectID string) ([]Comment, error) {
	if _, err := st.Project(projectID); err != nil {
		return nil, errors.Trace(err)
	}
	var docs []commentDoc
	if err := st.db.All(commentsC, bson.D{{Name: "project-id", Value: projectID}}, &docs); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	comments := make([]Comment, len(docs))
	for i, doc := range docs {
		comments[i] = *commentFromDoc(doc)
	}
	return comments, nil
}

func commentFromDoc(doc commentDoc) *Comment {
	comment := &Comment{
		ID:        doc.DocID,
		ProjectID: doc.ProjectID,
		AuthorID:  doc.AuthorID,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt.UTC(),
	}
	if doc.FileName != "" || doc.FilePath != "" {
		comment.File = &FileMetadata{
			Name: doc.FileName,
			Path: doc.FilePath,
			Size: doc.FileSize,
			Type: doc.FileType,
		}
	}
	return comment
}
