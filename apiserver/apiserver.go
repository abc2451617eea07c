// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package apiserver exposes the TeamSync domain operations over HTTP.
// Handlers are thin: decode, call into state, encode. All policy lives
// in the state layer; all authentication in the token middleware.
package apiserver

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"

	"github.com/teamsync/teamsync/internal/auth"
	"github.com/teamsync/teamsync/state"
)

var logger = loggo.GetLogger("teamsync.apiserver")

const defaultSessionTTL = 12 * time.Hour

// Config holds the server's collaborators.
type Config struct {
	State  *state.State
	Tokens *auth.TokenFactory

	// SessionTTL bounds issued session tokens; 12h when unset.
	SessionTTL time.Duration
}

// Server routes the TeamSync HTTP API.
type Server struct {
	st         *state.State
	tokens     *auth.TokenFactory
	sessionTTL time.Duration
	router     *mux.Router
}

// NewServer returns a Server ready to serve.
func NewServer(cfg Config) *Server {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	srv := &Server{
		st:         cfg.State,
		tokens:     cfg.Tokens,
		sessionTTL: ttl,
		router:     mux.NewRouter(),
	}
	srv.addRoutes()
	return srv
}

func (srv *Server) addRoutes() {
	r := srv.router
	r.HandleFunc("/user/signup", srv.signup).Methods("POST")
	r.HandleFunc("/user/signin", srv.signin).Methods("POST")
	r.HandleFunc("/user/update", srv.asUser(srv.updateUser)).Methods("PUT")

	r.HandleFunc("/admin/signin", srv.adminSignin).Methods("POST")
	r.HandleFunc("/admin/approve", srv.asAdmin(srv.approve)).Methods("POST")

	r.HandleFunc("/project/create", srv.asUser(srv.createProject)).Methods("POST")
	r.HandleFunc("/project/update", srv.asUser(srv.updateProject)).Methods("PUT")
	r.HandleFunc("/project/add-members", srv.asUser(srv.addMembers)).Methods("POST")
	r.HandleFunc("/project/my-created-projects", srv.asUser(srv.createdProjects)).Methods("GET")
	r.HandleFunc("/project/assigned", srv.asUser(srv.assignedProjects)).Methods("GET")
	r.HandleFunc("/project/{id}", srv.asUser(srv.removeProject)).Methods("DELETE")
	r.HandleFunc("/project/{id}/report", srv.asUser(srv.projectReport)).Methods("GET")
	r.HandleFunc("/project/{id}/tasks", srv.asUser(srv.projectTasks)).Methods("GET")
	r.HandleFunc("/project/{id}/comments", srv.asUser(srv.addComment)).Methods("POST")
	r.HandleFunc("/project/{id}/comments", srv.asUser(srv.projectComments)).Methods("GET")

	r.HandleFunc("/task/create", srv.asUser(srv.createTask)).Methods("POST")
	r.HandleFunc("/task/assign", srv.asUser(srv.assignTask)).Methods("PUT")
	r.HandleFunc("/task/status", srv.asUser(srv.setTaskStatus)).Methods("PUT")
	r.HandleFunc("/task/update", srv.asUser(srv.updateTask)).Methods("PUT")
	r.HandleFunc("/task/{id}/history", srv.asUser(srv.taskHistory)).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (srv *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	srv.router.ServeHTTP(w, req)
}
