// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"
	"strings"

	"github.com/juju/errors"

	"github.com/teamsync/teamsync/apiserver/params"
	"github.com/teamsync/teamsync/internal/auth"
	"github.com/teamsync/teamsync/state"
)

type userHandler func(w http.ResponseWriter, req *http.Request, u *state.User)

type adminHandler func(w http.ResponseWriter, req *http.Request, a *state.Admin)

// asUser wraps a handler with user-token authentication: the bearer
// token must validate and its email must resolve to an account.
func (srv *Server) asUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims, ok := srv.authenticate(w, req)
		if !ok {
			return
		}
		u, err := srv.st.User(claims.Email)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, params.ErrorResponse{
				Message: "Invalid token",
				Code:    codeUnauthorized,
			})
			return
		}
		h(w, req, u)
	}
}

// asAdmin wraps a handler with admin-token authentication: the token
// must additionally carry the admin kind.
func (srv *Server) asAdmin(h adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims, ok := srv.authenticate(w, req)
		if !ok {
			return
		}
		if claims.Kind != auth.KindAdmin {
			writeJSON(w, http.StatusUnauthorized, params.ErrorResponse{
				Message: "Invalid token",
				Code:    codeUnauthorized,
			})
			return
		}
		a, err := srv.st.Admin(claims.Email)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, params.ErrorResponse{
				Message: "Invalid token",
				Code:    codeUnauthorized,
			})
			return
		}
		h(w, req, a)
	}
}

func (srv *Server) authenticate(w http.ResponseWriter, req *http.Request) (auth.Claims, bool) {
	raw := req.Header.Get("Authorization")
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, params.ErrorResponse{
			Message: "Please enter a token",
			Code:    codeUnauthorized,
		})
		return auth.Claims{}, false
	}
	raw = strings.TrimPrefix(raw, "Bearer ")
	claims, err := srv.tokens.ValidateToken(raw)
	if err != nil {
		if !errors.Is(err, errors.Unauthorized) {
			logger.Errorf("token validation: %v", err)
		}
		writeJSON(w, http.StatusUnauthorized, params.ErrorResponse{
			Message: "Invalid token",
			Code:    codeUnauthorized,
		})
		return auth.Claims{}, false
	}
	return claims, true
}
