// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"

	"github.com/teamsync/teamsync/apiserver/params"
	"github.com/teamsync/teamsync/core/deadline"
	"github.com/teamsync/teamsync/state"
)

func (srv *Server) createProject(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.CreateProjectRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	due, err := deadline.Parse(body.Deadline)
	if err != nil {
		sendError(w, err)
		return
	}
	p, err := srv.st.AddProject(u.ID(), state.AddProjectArgs{
		Name:        body.Name,
		Description: body.Description,
		Deadline:    due,
		Tags:        body.Tags,
	})
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, params.CreateProjectResponse{
		Message:   "Project created successfully",
		ProjectID: p.ID(),
	})
}

func (srv *Server) updateProject(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.UpdateProjectRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	patch := state.ProjectPatch{
		Name:        body.Name,
		Description: body.Description,
		Tags:        body.Tags,
	}
	if body.Deadline != nil {
		due, err := deadline.Parse(*body.Deadline)
		if err != nil {
			sendError(w, err)
			return
		}
		patch.Deadline = &due
	}
	if err := srv.st.UpdateProject(u.ID(), body.ProjectID, patch); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "Project updated successfully",
	})
}

// addMembers is deliberately best-effort: candidates that can join do,
// and a 400 with the per-candidate error list reports the rest.
func (srv *Server) addMembers(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.AddMembersRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	failures, err := srv.st.AddProjectMembers(u.ID(), body.ProjectID, body.UserIDs)
	if err != nil {
		sendError(w, err)
		return
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusBadRequest, params.ErrorResponse{
			Message: "Some members could not be added",
			Errors:  failures,
			Code:    codeInvalid,
		})
		return
	}
	writeJSON(w, http.StatusOK, params.AddMembersResponse{
		Message: "Members added successfully",
	})
}

func (srv *Server) removeProject(w http.ResponseWriter, req *http.Request, u *state.User) {
	projectID := mux.Vars(req)["id"]
	if err := srv.st.RemoveProject(u.ID(), projectID); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "Project deleted successfully",
	})
}

func (srv *Server) createdProjects(w http.ResponseWriter, req *http.Request, u *state.User) {
	infos, err := srv.st.ProjectsCreatedBy(u.ID())
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectsResponse(infos))
}

func (srv *Server) assignedProjects(w http.ResponseWriter, req *http.Request, u *state.User) {
	infos, err := srv.st.ProjectsAssignedTo(u.ID())
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectsResponse(infos))
}

func projectsResponse(infos []state.ProjectInfo) params.ProjectsResponse {
	resp := params.ProjectsResponse{Projects: make([]params.Project, len(infos))}
	for i, info := range infos {
		resp.Projects[i] = params.Project{
			ID:          info.ID,
			Name:        info.Name,
			Description: info.Description,
			Deadline:    info.Deadline.Format(time.RFC3339),
			CreatedAt:   info.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   info.UpdatedAt.Format(time.RFC3339),
			CreatorID:   info.CreatorID,
			IsApproved:  info.IsApproved,
			Tags:        info.Tags,
		}
	}
	return resp
}

func (srv *Server) projectReport(w http.ResponseWriter, req *http.Request, u *state.User) {
	projectID := mux.Vars(req)["id"]
	report, err := srv.st.ProjectReport(projectID)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.ReportResponse{
		ProjectID: report.ProjectID,
		Name:      report.Name,
		Tags:      report.Tags,
		Statistics: params.Statistics{
			TotalTasks:           report.Statistics.TotalTasks,
			CompletedTasks:       report.Statistics.CompletedTasks,
			PendingTasks:         report.Statistics.PendingTasks,
			OverdueTasks:         report.Statistics.OverdueTasks,
			CompletionPercentage: report.Statistics.CompletionPercentage,
			LastUpdated:          report.Statistics.LastUpdated.Format(time.RFC3339),
		},
	})
}

func (srv *Server) addComment(w http.ResponseWriter, req *http.Request, u *state.User) {
	projectID := mux.Vars(req)["id"]
	var body params.AddCommentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	var file *state.FileMetadata
	if body.File != nil {
		if body.File.Name == "" {
			sendError(w, errors.NotValidf("file without a name"))
			return
		}
		file = &state.FileMetadata{
			Name: body.File.Name,
			Path: body.File.Path,
			Size: body.File.Size,
			Type: body.File.Type,
		}
	}
	comment, err := srv.st.AddComment(u.ID(), projectID, body.Content, file)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse(*comment))
}

func (srv *Server) projectComments(w http.ResponseWriter, req *http.Request, u *state.User) {
	projectID := mux.Vars(req)["id"]
	comments, err := srv.st.ProjectComments(projectID)
	if err != nil {
		sendError(w, err)
		return
	}
	resp := params.CommentsResponse{Comments: make([]params.Comment, len(comments))}
	for i, comment := range comments {
		resp.Comments[i] = commentResponse(comment)
	}
	writeJSON(w, http.StatusOK, resp)
}

func commentResponse(comment state.Comment) params.Comment {
	out := params.Comment{
		ID:        comment.ID,
		ProjectID: comment.ProjectID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt.Format(time.RFC3339),
	}
	if comment.File != nil {
		out.File = &params.FileMetadata{
			Name: comment.File.Name,
			Path: comment.File.Path,
			Size: comment.File.Size,
			Type: comment.File.Type,
		}
	}
	return out
}
