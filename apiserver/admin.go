// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/teamsync/teamsync/apiserver/params"
	"github.com/teamsync/teamsync/internal/auth"
	"github.com/teamsync/teamsync/state"
)

func (srv *Server) adminSignin(w http.ResponseWriter, req *http.Request) {
	var body params.SigninRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	a, err := srv.st.LoginAdmin(body.Email, body.Password)
	if err != nil {
		sendErrors(w, err)
		return
	}
	token, err := srv.tokens.IssueToken(a.Email(), auth.KindAdmin, srv.sessionTTL)
	if err != nil {
		sendErrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SigninResponse{
		Message: "Admin signed in successfully.",
		Token:   token,
	})
}

func (srv *Server) approve(w http.ResponseWriter, req *http.Request, a *state.Admin) {
	var body params.ApproveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	approval, err := srv.st.RecordDecision(a.ID(), body.ProjectID, body.Status)
	if err != nil {
		sendError(w, err)
		return
	}
	message := "Project has been approved successfully."
	if approval.Status == state.ApprovalRejected {
		message = "Project has been rejected successfully."
	}
	writeJSON(w, http.StatusOK, params.ApproveResponse{
		Message: message,
		Approval: params.Approval{
			ID:           approval.ID,
			ProjectID:    approval.ProjectID,
			AdminID:      approval.AdminID,
			ApprovalDate: approval.ApprovalDate.Format(time.RFC3339),
			Status:       approval.Status,
		},
	})
}
