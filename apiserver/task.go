// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/teamsync/teamsync/apiserver/params"
	"github.com/teamsync/teamsync/core/deadline"
	"github.com/teamsync/teamsync/core/taskstatus"
	"github.com/teamsync/teamsync/state"
)

func (srv *Server) createTask(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.CreateTaskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	args := state.AddTaskArgs{
		ProjectID:   body.ProjectID,
		Title:       body.Title,
		Description: body.Description,
		AssigneeID:  body.AssigneeID,
	}
	if body.Status != "" {
		status, err := taskstatus.Parse(body.Status)
		if err != nil {
			sendError(w, err)
			return
		}
		args.Status = status
	}
	if body.Deadline != "" {
		due, err := deadline.Parse(body.Deadline)
		if err != nil {
			sendError(w, err)
			return
		}
		args.Deadline = due
	}
	task, err := srv.st.AddTask(u.ID(), args)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, params.CreateTaskResponse{
		Message: "Task created successfully",
		Task:    taskResponse(task),
	})
}

func (srv *Server) assignTask(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.AssignTaskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	if err := srv.st.AssignTask(u.ID(), body.TaskID, body.AssigneeID); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "Task assigned successfully",
	})
}

func (srv *Server) setTaskStatus(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.TaskStatusRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	status, err := taskstatus.Parse(body.Status)
	if err != nil {
		sendError(w, err)
		return
	}
	if err := srv.st.SetTaskStatus(u.ID(), body.TaskID, status); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "Task status updated successfully",
	})
}

func (srv *Server) updateTask(w http.ResponseWriter, req *http.Request, u *state.User) {
	var body params.UpdateTaskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		badRequest(w, err)
		return
	}
	patch := state.TaskPatch{
		Title:       body.Title,
		Description: body.Description,
	}
	if body.Deadline != nil {
		due, err := deadline.Parse(*body.Deadline)
		if err != nil {
			sendError(w, err)
			return
		}
		patch.Deadline = &due
	}
	if err := srv.st.UpdateTask(u.ID(), body.TaskID, patch); err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params.SimpleResponse{
		Message: "Task updated successfully",
	})
}

func (srv *Server) projectTasks(w http.ResponseWriter, req *http.Request, u *state.User) {
	projectID := mux.Vars(req)["id"]
	tasks, err := srv.st.ProjectTasks(projectID)
	if err != nil {
		sendError(w, err)
		return
	}
	resp := params.TasksResponse{Tasks: make([]params.Task, len(tasks))}
	for i, task := range tasks {
		resp.Tasks[i] = taskResponse(task)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) taskHistory(w http.ResponseWriter, req *http.Request, u *state.User) {
	taskID := mux.Vars(req)["id"]
	history, err := srv.st.TaskHistory(taskID)
	if err != nil {
		sendError(w, err)
		return
	}
	resp := params.TaskHistoryResponse{History: make([]params.TaskChange, len(history))}
	for i, change := range history {
		resp.History[i] = params.TaskChange{
			Field:     change.Field,
			OldValue:  change.OldValue,
			NewValue:  change.NewValue,
			ChangedBy: change.ChangedBy,
			ChangedAt: change.ChangedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func taskResponse(task *state.Task) params.Task {
	out := params.Task{
		ID:          task.ID(),
		ProjectID:   task.ProjectID(),
		Title:       task.Title(),
		Description: task.Description(),
		Status:      string(task.Status()),
		AssigneeID:  task.AssigneeID(),
		CreatorID:   task.CreatorID(),
	}
	if !task.Deadline().IsZero() {
		out.Deadline = task.Deadline().Format(time.RFC3339)
	}
	return out
}
