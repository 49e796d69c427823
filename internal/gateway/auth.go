package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/starpal/starpal/internal/users"
)

type contextKey string

// userContextKey carries the authenticated username through the request.
const userContextKey contextKey = "gateway.user"

// usernameFrom returns the authenticated username stored by tokenMiddleware.
func usernameFrom(ctx context.Context) string {
	name, _ := ctx.Value(userContextKey).(string)
	return name
}

// tokenMiddleware validates the bearer token against the user directory.
// The token is the username itself: the frontend has no session layer, so
// possession of the account name is the whole credential.
func (g *Gateway) tokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.directory == nil {
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "user directory unavailable"})
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "missing bearer token"})
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		user, err := g.directory.FindByUsername(ctx, token)
		if errors.Is(err, users.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "invalid token"})
			return
		}
		if err != nil {
			g.logger.Error("token lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "authentication failed"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user.Username)))
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (g *Gateway) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.directory == nil {
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "user directory unavailable"})
			return
		}

		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}

		username := strings.TrimSpace(req.Username)
		name := strings.TrimSpace(req.Name)

		if username == "" || req.Password == "" || name == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "username, password and name are required"})
			return
		}
		if !users.ValidEmail(username) {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "username must be a valid email address"})
			return
		}
		if err := users.ValidatePassword(req.Password); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}
		if err := users.ValidateName(name); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		if _, err := g.directory.Create(ctx, username, req.Password, name); err != nil {
			if errors.Is(err, users.ErrExists) {
				writeJSON(w, http.StatusBadRequest, messageResponse{Message: "account already exists"})
				return
			}
			g.logger.Error("registration failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "registration failed, try again later"})
			return
		}

		writeJSON(w, http.StatusCreated, messageResponse{Message: "registered, please log in"})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (g *Gateway) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.directory == nil {
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "user directory unavailable"})
			return
		}

		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "username and password are required"})
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		user, err := g.directory.FindByUsername(ctx, username)
		if errors.Is(err, users.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: "account does not exist, please register first"})
			return
		}
		if err != nil {
			g.logger.Error("login lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "login failed, try again later"})
			return
		}

		match, err := g.directory.VerifyPassword(ctx, username, req.Password)
		if err != nil {
			g.logger.Error("password verification failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "login failed, try again later"})
			return
		}
		if !match {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "wrong password"})
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			Message:  "login successful",
			Username: user.Username,
			Name:     user.Name,
		})
	}
}

type changePasswordRequest struct {
	Username string `json:"username"`
	OldPwd   string `json:"oldpwd"`
	NewPwd   string `json:"newpwd"`
}

func (g *Gateway) handleChangePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.directory == nil {
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "user directory unavailable"})
			return
		}

		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" || req.OldPwd == "" || req.NewPwd == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "username, oldpwd and newpwd are required"})
			return
		}
		if err := users.ValidatePassword(req.NewPwd); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		if _, err := g.directory.FindByUsername(ctx, username); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, messageResponse{Message: "account does not exist"})
				return
			}
			g.logger.Error("change password lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "password change failed, try again later"})
			return
		}

		match, err := g.directory.VerifyPassword(ctx, username, req.OldPwd)
		if err != nil {
			g.logger.Error("password verification failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "password change failed, try again later"})
			return
		}
		if !match {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "wrong current password"})
			return
		}

		if err := g.directory.UpdatePassword(ctx, username, req.NewPwd); err != nil {
			g.logger.Error("password update failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "password change failed, try again later"})
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "password changed, log in with the new password"})
	}
}
