// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state_test

import (
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/teamsync/teamsync/state"
)

type projectSuite struct {
	baseSuite
	owner *state.User
}

var _ = gc.Suite(&projectSuite{})

func (s *projectSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.owner = s.addUser(c, "alice", "alice@example.com")
}

func (s *projectSuite) TestAddProject(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital", "infra", "go")
	c.Assert(p.Name(), gc.Equals, "orbital")
	c.Assert(p.CreatorID(), gc.Equals, s.owner.ID())
	c.Assert(p.IsApproved(), jc.IsFalse)

	tags, err := p.Tags()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tags, gc.DeepEquals, []string{"go", "infra"})
}

func (s *projectSuite) TestAddProjectValidation(c *gc.C) {
	for i, args := range []state.AddProjectArgs{
		{Name: "abc", Description: "long enough", Deadline: s.clock.Now()},
		{Name: "orbital", Description: "abc", Deadline: s.clock.Now()},
		{Name: "orbital", Description: "long enough"},
		{Name: "orbital", Description: "long enough", Deadline: s.clock.Now(), Tags: []string{" "}},
	} {
		c.Logf("test %d", i)
		_, err := s.st.AddProject(s.owner.ID(), args)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (s *projectSuite) TestAddProjectUnknownCreator(c *gc.C) {
	_, err := s.st.AddProject("no-such-user", state.AddProjectArgs{
		Name:        "orbital",
		Description: "long enough",
		Deadline:    s.clock.Now(),
	})
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *projectSuite) TestAddProjectDuplicateName(c *gc.C) {
	s.addProject(c, s.owner.ID(), "orbital")
	_, err := s.st.AddProject(s.owner.ID(), state.AddProjectArgs{
		Name:        "Orbital",
		Description: "long enough",
		Deadline:    s.clock.Now(),
	})
	c.Assert(err, jc.ErrorIs, errors.AlreadyExists)
}

func (s *projectSuite) TestAddProjectDuplicateTagsCollapsed(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital", "go", "Go", "infra")
	tags, err := p.Tags()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tags, gc.DeepEquals, []string{"go", "infra"})
}

func (s *projectSuite) TestUpdateProject(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	s.clock.Advance(time.Hour)

	name := "orbital-2"
	desc := "a longer description"
	deadline := s.clock.Now().Add(60 * 24 * time.Hour)
	err := s.st.UpdateProject(s.owner.ID(), p.ID(), state.ProjectPatch{
		Name:        &name,
		Description: &desc,
		Deadline:    &deadline,
		Tags:        []string{"go"},
	})
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(p.Refresh(), jc.ErrorIsNil)
	c.Assert(p.Name(), gc.Equals, "orbital-2")
	c.Assert(p.Description(), gc.Equals, "a longer description")
	c.Assert(p.Deadline(), gc.Equals, deadline.Round(time.Second).UTC())
	c.Assert(p.UpdatedAt(), gc.Equals, s.clock.Now().Round(time.Second).UTC())

	tags, err := p.Tags()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tags, gc.DeepEquals, []string{"go"})

	// The old name is free again.
	s.addProject(c, s.owner.ID(), "orbital")
}

func (s *projectSuite) TestUpdateProjectNotCreator(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	mallory := s.addUser(c, "mallory", "mallory@example.com")

	name := "stolen"
	err := s.st.UpdateProject(mallory.ID(), p.ID(), state.ProjectPatch{Name: &name})
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *projectSuite) TestUpdateProjectNameTaken(c *gc.C) {
	s.addProject(c, s.owner.ID(), "orbital")
	p := s.addProject(c, s.owner.ID(), "lunar")

	name := "Orbital"
	err := s.st.UpdateProject(s.owner.ID(), p.ID(), state.ProjectPatch{Name: &name})
	c.Assert(err, jc.ErrorIs, errors.AlreadyExists)
}

func (s *projectSuite) TestUpdateProjectDuplicateTagAbortsWholePatch(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital", "go")

	desc := "a fresh description"
	err := s.st.UpdateProject(s.owner.ID(), p.ID(), state.ProjectPatch{
		Description: &desc,
		Tags:        []string{"go"},
	})
	c.Assert(err, jc.ErrorIs, errors.AlreadyExists)

	// Nothing of the patch landed.
	c.Assert(p.Refresh(), jc.ErrorIsNil)
	c.Assert(p.Description(), gc.Equals, "a project for testing")
}

func (s *projectSuite) TestAddProjectMembers(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	bob := s.addUser(c, "bob", "bob@example.com")
	carol := s.addUser(c, "carol", "carol@example.com")

	failures, err := s.st.AddProjectMembers(s.owner.ID(), p.ID(), []string{bob.ID(), carol.ID()})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(failures, gc.HasLen, 0)

	members, err := s.st.ProjectMembers(p.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(members, jc.SameContents, []string{bob.ID(), carol.ID()})
}

func (s *projectSuite) TestAddProjectMembersPartialFailure(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	bob := s.addUser(c, "bob", "bob@example.com")
	carol := s.addUser(c, "carol", "carol@example.com")
	_, err := s.st.AddProjectMembers(s.owner.ID(), p.ID(), []string{carol.ID()})
	c.Assert(err, jc.ErrorIsNil)

	failures, err := s.st.AddProjectMembers(s.owner.ID(), p.ID(), []string{
		bob.ID(), "no-such-user", s.owner.ID(), carol.ID(),
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(failures, gc.DeepEquals, []string{
		`user "no-such-user" not found`,
		`user "` + s.owner.ID() + `" is the project creator`,
		`user "` + carol.ID() + `" is already a member`,
	})

	// The valid candidate still joined.
	members, err := s.st.ProjectMembers(p.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(members, jc.SameContents, []string{bob.ID(), carol.ID()})
}

func (s *projectSuite) TestAddProjectMembersNotCreator(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	bob := s.addUser(c, "bob", "bob@example.com")

	_, err := s.st.AddProjectMembers(bob.ID(), p.ID(), []string{bob.ID()})
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *projectSuite) TestProjectsCreatedBy(c *gc.C) {
	s.addProject(c, s.owner.ID(), "orbital", "go")
	s.clock.Advance(time.Minute)
	s.addProject(c, s.owner.ID(), "lunar")

	infos, err := s.st.ProjectsCreatedBy(s.owner.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(infos, gc.HasLen, 2)
	c.Assert(infos[0].Name, gc.Equals, "orbital")
	c.Assert(infos[0].Tags, gc.DeepEquals, []string{"go"})
	c.Assert(infos[1].Name, gc.Equals, "lunar")
	c.Assert(infos[1].Tags, gc.HasLen, 0)
}

func (s *projectSuite) TestProjectsAssignedTo(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	s.addProject(c, s.owner.ID(), "lunar")
	bob := s.addUser(c, "bob", "bob@example.com")

	infos, err := s.st.ProjectsAssignedTo(bob.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(infos, gc.HasLen, 0)

	_, err = s.st.AddProjectMembers(s.owner.ID(), p.ID(), []string{bob.ID()})
	c.Assert(err, jc.ErrorIsNil)

	infos, err = s.st.ProjectsAssignedTo(bob.ID())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(infos, gc.HasLen, 1)
	c.Assert(infos[0].Name, gc.Equals, "orbital")
}

func (s *projectSuite) TestRemoveProjectNotCreator(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital")
	bob := s.addUser(c, "bob", "bob@example.com")

	err := s.st.RemoveProject(bob.ID(), p.ID())
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *projectSuite) TestRemoveProjectCascades(c *gc.C) {
	p := s.addProject(c, s.owner.ID(), "orbital", "go")
	bob := s.addUser(c, "bob", "bob@example.com")
	_, err := s.st.AddProjectMembers(s.owner.ID(), p.ID(), []string{bob.ID()})
	c.Assert(err, jc.ErrorIsNil)

	task, err := s.st.AddTask(s.owner.ID(), state.AddTaskArgs{
		ProjectID: p.ID(),
		Title:     "write the thing",
	})
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.st.AddComment(bob.ID(), p.ID(), "looks good", nil)
	c.Assert(err, jc.ErrorIsNil)
	admin := s.addAdmin(c, "root", "root@example.com")
	_, err = s.st.RecordDecision(admin.ID(), p.ID(), state.ApprovalApproved)
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.st.ProjectReport(p.ID())
	c.Assert(err, jc.ErrorIsNil)

	err = s.st.RemoveProject(s.owner.ID(), p.ID())
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.st.Project(p.ID())
	c.Assert(err, jc.ErrorIs, errors.NotFound)
	_, err = s.st.Task(task.ID())
	c.Assert(err, jc.ErrorIs, errors.NotFound)
	for _, collection := range []string{
		"projects", "projectNames", "projectTags", "projectUsers",
		"projectApprovals", "tasks", "taskHistory", "comments",
		"projectStatistics",
	} {
		c.Check(s.db.Docs(collection), gc.HasLen, 0,
			gc.Commentf("collection %q not empty", collection))
	}

	// The name is free for reuse.
	s.addProject(c, s.owner.ID(), "orbital")
}

func (s *projectSuite) TestRemoveProjectLeavesOthersAlone(c *gc.C) {
	p1 := s.addProject(c, s.owner.ID(), "orbital", "go")
	p2 := s.addProject(c, s.owner.ID(), "lunar", "go")

	err := s.st.RemoveProject(s.owner.ID(), p1.ID())
	c.Assert(err, jc.ErrorIsNil)

	tags, err := p2.Tags()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(tags, gc.DeepEquals, []string{"go"})
}
