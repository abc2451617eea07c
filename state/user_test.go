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

type userSuite struct {
	baseSuite
}

var _ = gc.Suite(&userSuite{})

func (s *userSuite) TestAddUser(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")
	c.Assert(u.Name(), gc.Equals, "bob")
	c.Assert(u.Email(), gc.Equals, "bob@example.com")
	c.Assert(u.ID(), gc.Not(gc.Equals), "")
	c.Assert(u.CreatedAt(), gc.Equals, s.clock.Now().Round(time.Second).UTC())
	c.Assert(u.LastLogin().IsZero(), jc.IsTrue)
	c.Assert(u.ResetCode(), gc.HasLen, 6)
}

func (s *userSuite) TestAddUserValidation(c *gc.C) {
	for i, args := range []state.AddUserArgs{
		{Name: "", Email: "bob@example.com", Password: "hunter2hunter2"},
		{Name: "   ", Email: "bob@example.com", Password: "hunter2hunter2"},
		{Name: "bob", Email: "not-an-email", Password: "hunter2hunter2"},
		{Name: "bob", Email: "bob@nodot", Password: "hunter2hunter2"},
		{Name: "bob", Email: "bob@example.com", Password: "short"},
	} {
		c.Logf("test %d", i)
		_, err := s.st.AddUser(args)
		c.Check(err, jc.ErrorIs, errors.NotValid)
	}
}

func (s *userSuite) TestAddUserDuplicateEmail(c *gc.C) {
	s.addUser(c, "bob", "bob@example.com")
	_, err := s.st.AddUser(state.AddUserArgs{
		Name:     "other bob",
		Email:    "Bob@example.com",
		Password: "hunter2hunter2",
	})
	c.Assert(err, jc.ErrorIs, errors.AlreadyExists)
}

func (s *userSuite) TestAddUserPasswordNotStored(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")
	c.Assert(u.PasswordValid("hunter2hunter2"), jc.IsTrue)
	c.Assert(u.PasswordValid("hunter2hunter3"), jc.IsFalse)
}

func (s *userSuite) TestRegisterCodeRequired(c *gc.C) {
	s.st = state.New(s.db, s.clock, state.Config{RequireRegisterCode: true})
	_, err := s.st.AddUser(state.AddUserArgs{
		Name:     "bob",
		Email:    "bob@example.com",
		Password: "hunter2hunter2",
	})
	c.Assert(err, jc.ErrorIs, errors.NotValid)

	_, err = s.st.AddUser(state.AddUserArgs{
		Name:         "bob",
		Email:        "bob@example.com",
		Password:     "hunter2hunter2",
		RegisterCode: "123456",
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *userSuite) TestUserLookupIsCaseInsensitive(c *gc.C) {
	s.addUser(c, "bob", "Bob@Example.com")
	u, err := s.st.User("bob@example.com")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(u.Email(), gc.Equals, "Bob@Example.com")
}

func (s *userSuite) TestUserNotFound(c *gc.C) {
	_, err := s.st.User("nobody@example.com")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *userSuite) TestLoginUser(c *gc.C) {
	s.addUser(c, "bob", "bob@example.com")
	s.clock.Advance(time.Hour)

	u, err := s.st.LoginUser("bob@example.com", "hunter2hunter2")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(u.LastLogin(), gc.Equals, s.clock.Now().Round(time.Second).UTC())
}

func (s *userSuite) TestLoginUserWrongPassword(c *gc.C) {
	s.addUser(c, "bob", "bob@example.com")
	_, err := s.st.LoginUser("bob@example.com", "not-the-password")
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *userSuite) TestLoginUserUnknown(c *gc.C) {
	_, err := s.st.LoginUser("nobody@example.com", "hunter2hunter2")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *userSuite) TestLoginDoesNotTouchOtherFields(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")
	code := u.ResetCode()
	_, err := s.st.LoginUser("bob@example.com", "hunter2hunter2")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(u.Refresh(), jc.ErrorIsNil)
	c.Assert(u.ResetCode(), gc.Equals, code)
	c.Assert(u.Name(), gc.Equals, "bob")
}

func (s *userSuite) TestConfirmReset(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")
	code := u.ResetCode()

	err := s.st.ConfirmReset("bob@example.com", code, "freshpassword1", "")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(u.Refresh(), jc.ErrorIsNil)
	c.Assert(u.PasswordValid("freshpassword1"), jc.IsTrue)
	c.Assert(u.PasswordValid("hunter2hunter2"), jc.IsFalse)
}

func (s *userSuite) TestConfirmResetRotatesCode(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")
	code := u.ResetCode()

	err := s.st.ConfirmReset("bob@example.com", code, "freshpassword1", "")
	c.Assert(err, jc.ErrorIsNil)

	// The consumed code never validates a second time.
	err = s.st.ConfirmReset("bob@example.com", code, "anotherpassword", "")
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)

	c.Assert(u.Refresh(), jc.ErrorIsNil)
	c.Assert(u.ResetCode(), gc.Not(gc.Equals), code)
	c.Assert(u.PasswordValid("freshpassword1"), jc.IsTrue)
}

func (s *userSuite) TestConfirmResetUpdatesName(c *gc.C) {
	u := s.addUser(c, "bob", "bob@example.com")

	err := s.st.ConfirmReset("bob@example.com", u.ResetCode(), "", "robert")
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(u.Refresh(), jc.ErrorIsNil)
	c.Assert(u.Name(), gc.Equals, "robert")
	c.Assert(u.PasswordValid("hunter2hunter2"), jc.IsTrue)
}

func (s *userSuite) TestConfirmResetBadCode(c *gc.C) {
	s.addUser(c, "bob", "bob@example.com")
	err := s.st.ConfirmReset("bob@example.com", "000000", "freshpassword1", "")
	c.Assert(err, jc.ErrorIs, errors.Unauthorized)
}

func (s *userSuite) TestConfirmResetValidation(c *gc.C) {
	err := s.st.ConfirmReset("bob@example.com", "12345", "freshpassword1", "")
	c.Assert(err, jc.ErrorIs, errors.NotValid)

	err = s.st.ConfirmReset("bob@example.com", "123456", "short", "")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}
