// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params holds the wire types of the TeamSync HTTP API.
package params

// ErrorResponse is the error envelope. Message carries a single
// human-readable failure; Errors carries per-item failures where an
// operation validates a batch. Code is a stable machine-readable
// category: invalid, conflict, not-found, unauthorized or internal.
type ErrorResponse struct {
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// SignupRequest is the body of POST /user/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// RegisterOtp is only required when registration challenges are
	// switched on server-side.
	RegisterOtp string `json:"registerOtp,omitempty"`
}

// SignupResponse is the 201 body of POST /user/signup.
type SignupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// SigninRequest is the body of POST /user/signin and
// POST /admin/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninResponse carries the session token.
type SigninResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// UpdateUserRequest is the body of PUT /user/update: a password-reset
// confirmation with optional new credentials.
type UpdateUserRequest struct {
	Email    string `json:"email"`
	ResetOtp string `json:"resetOtp"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
}

// SimpleResponse is a bare success message.
type SimpleResponse struct {
	Message string `json:"message"`
}

// CreateProjectRequest is the body of POST /project/create. Deadline
// is dd/mm/yy or dd/mm/yyyy.
type CreateProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateProjectResponse is the 201 body of POST /project/create.
type CreateProjectResponse struct {
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
}

// UpdateProjectRequest is the body of PUT /project/update. Omitted
// fields are left untouched; tags are appended.
type UpdateProjectRequest struct {
	ProjectID   string   `json:"project_id"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Deadline    *string  `json:"deadline,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AddMembersRequest is the body of POST /project/add-members.
type AddMembersRequest struct {
	ProjectID string   `json:"project_id"`
	UserIDs   []string `json:"user_ids"`
}

// AddMembersResponse reports a member addition. Errors lists the
// candidates that could not join; the 400 partial-failure response
// reuses ErrorResponse with the same list.
type AddMembersResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Project is a project joined with its tags, as returned by the
// listing and report endpoints.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	CreatorID   string   `json:"creator_id"`
	IsApproved  bool     `json:"is_approved"`
	Tags        []string `json:"tags,omitempty"`
}

// ProjectsResponse is the body of the project listing endpoints.
type ProjectsResponse struct {
	Projects []Project `json:"projects"`
}

// ApproveRequest is the body of POST /admin/approve.
type ApproveRequest struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

// Approval is one recorded admin decision.
type Approval struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	AdminID      string `json:"admin_id"`
	ApprovalDate string `json:"approval_date"`
	Status       string `json:"status"`
}

// ApproveResponse is the body of POST /admin/approve.
type ApproveResponse struct {
	Message  string   `json:"message"`
	Approval Approval `json:"approval"`
}

// CreateTaskRequest is the body of POST /task/create.
type CreateTaskRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Status      string `json:"status,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

// Task is a task as returned by the task endpoints.
type Task struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	CreatorID   string `json:"creator_id"`
}

// CreateTaskResponse is the 201 body of POST /task/create.
type CreateTaskResponse struct {
	Message string `json:"message"`
	Task    Task   `json:"task"`
}

// TasksResponse is the body of GET /project/{id}/tasks.
type TasksResponse struct {
	Tasks []Task `json:"tasks"`
}

// AssignTaskRequest is the body of PUT /task/assign. An empty
// assignee unassigns the task.
type AssignTaskRequest struct {
	TaskID     string `json:"task_id"`
	AssigneeID string `json:"assignee_id"`
}

// TaskStatusRequest is the body of PUT /task/status.
type TaskStatusRequest struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// UpdateTaskRequest is the body of PUT /task/update.
type UpdateTaskRequest struct {
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
}

// TaskChange is one entry of a task's audit history.
type TaskChange struct {
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	ChangedBy string `json:"changed_by"`
	ChangedAt string `json:"changed_at"`
}

// TaskHistoryResponse is the body of GET /task/{id}/history.
type TaskHistoryResponse struct {
	History []TaskChange `json:"history"`
}

// FileMetadata describes a file attached to a comment. Only metadata
// travels through the API; content is uploaded elsewhere.
type FileMetadata struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// AddCommentRequest is the body of POST /project/{id}/comments.
type AddCommentRequest struct {
	Content string        `json:"content"`
	File    *FileMetadata `json:"file,omitempty"`
}

// Comment is one comment on a project.
type Comment struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	AuthorID  string        `json:"author_id"`
	Content   string        `json:"content"`
	File      *FileMetadata `json:"file,omitempty"`
	CreatedAt string        `json:"created_at"`
}

// CommentsResponse is the body of GET /project/{id}/comments.
type CommentsResponse struct {
	Comments []Comment `json:"comments"`
}

// Statistics holds the task counts of one project.
type Statistics struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	PendingTasks         int     `json:"pending_tasks"`
	OverdueTasks         int     `json:"overdue_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
	LastUpdated          string  `json:"last_updated"`
}

// ReportResponse is the body of GET /project/{id}/report.
type ReportResponse struct {
	ProjectID  string     `json:"project_id"`
	Name       string     `json:"name"`
	Tags       []string   `json:"tags,omitempty"`
	Statistics Statistics `json:"statistics"`
}
