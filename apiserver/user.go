// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/juju/errors"

	"github.com/teamsync/teamsync/apiserver/params"
	"github.com/teamsync/teamsync/internal/auth"
	"github.com/teamsync/teamsync/state"
)

func (srv *Server) signup(w http.ResponseWriter, req *http.Request) {
	var body params.SignupRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	u, err := srv.st.AddUser(state.AddUserArgs{
		Name:         body.Name,
		Email:        body.Email,
		Password:     body.Password,
		RegisterCode: body.RegisterOtp,
	})
	if err != nil {
		sendErrors(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, params.SignupResponse{
		Message: "User registered successfully.",
		UserID:  u.ID(),
	})
}

func (srv *Server) signin(w http.ResponseWriter, req *http.Request) {
	var body params.SigninRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	u, err := srv.st.LoginUser(body.Email, body.Password)
	if err != nil {
		sendErrors(w, err)
		return
	}
	token, err := srv.tokens.IssueToken(u.Email(), auth.KindUser, srv.sessionTTL)
	if err != nil {
		sendErrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SigninResponse{
		Message: "User signed in successfully.",
		Token:   token,
	})
}

// updateUser confirms a password reset. The token's email must match
// the account being reset; one account can never consume another's
// challenge.
func (srv *Server) updateUser(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.UpdateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	if body.Email != u.Email() {
		sendErrors(w, errors.Unauthorizedf("token does not match account"))
		return
	}
	err := srv.st.ConfirmReset(body.Email, body.ResetOtp, body.Password, body.Name)
	if err != nil {
		sendErrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "User updated successfully.",
	})
}
