package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"consulta/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a regular user account. Admin accounts are only
// seeded at startup, never created through the API.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "AUTH_BAD_REQUEST", "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "AUTH_BAD_REQUEST", "username and password are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "AUTH_WEAK_PASSWORD", "password must be at least 8 characters")
		return
	}

	err := s.deps.Users.Create(r.Context(), req.Username, req.Password, auth.RoleUser)
	if errors.Is(err, auth.ErrUserExists) {
		writeError(w, r, http.StatusBadRequest, "AUTH_USER_EXISTS", "username is already taken")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, map[string]string{
		"message": "account created",
	})
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

// handleLogin verifies credentials and issues a bearer token. Credentials
// arrive as a form post (username, password) or as JSON.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := loginCredentials(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "AUTH_BAD_REQUEST", "username and password are required")
		return
	}

	user, err := s.deps.Users.Authenticate(r.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "incorrect username or password")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	token, err := s.deps.Tokens.Issue(user.Username, user.Role)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        user.Role,
	})
}

// loginCredentials reads credentials from a JSON body or form fields.
func loginCredentials(r *http.Request) (username, password string, ok bool) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", false
		}
		username, password = req.Username, req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", false
		}
		username = r.PostFormValue("username")
		password = r.PostFormValue("password")
	}

	username = strings.TrimSpace(username)
	return username, password, username != "" && password != ""
}
