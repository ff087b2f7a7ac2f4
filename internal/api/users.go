package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nmoret/inventario/internal/model"
	"github.com/nmoret/inventario/internal/store"
)

// UsersHandler manages staff accounts. The router guards every route as
// admin-only, so the handlers here only have to keep an admin from
// locking the instance out of administration entirely.
type UsersHandler struct {
	DB *sql.DB
}

// accountPayload is the body for every account mutation. Create reads
// all three fields; role changes and password resets read just theirs.
type accountPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

// normalizeUsername trims the submitted username and checks its length.
// The second return value is a user-facing message when it is unusable.
func normalizeUsername(raw string) (string, string) {
	name := strings.TrimSpace(raw)
	switch {
	case len(name) < minUsernameLen:
		return "", "username must be at least 3 characters"
	case len(name) > maxUsernameLen:
		return "", "username must be at most 32 characters"
	}
	return name, ""
}

func hashPassword(password string) (string, error) {
	if err := model.ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// pathID extracts the {id} path segment; a false return means the
// handler has already written a 400.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

// activeUser loads the account for id, treating soft-deleted accounts
// the same as missing ones.
func (h *UsersHandler) activeUser(w http.ResponseWriter, r *http.Request, id int64) *model.User {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("account lookup failed", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load user")
		return nil
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("account listing failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if accounts == nil {
		accounts = []model.User{}
	}
	jsonResponse(w, http.StatusOK, accounts)
}

// Create handles POST /api/users. Role defaults to staff when omitted.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountPayload
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username, msg := normalizeUsername(req.Username)
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleStaff
	}
	if !model.ValidRole(role) {
		jsonError(w, http.StatusBadRequest, "role must be admin or staff")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, username, hash, role)
	if err != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	slog.Info("account created",
		"by", GetClaims(r.Context()).Username, "username", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user := h.activeUser(w, r, id)
	if user == nil {
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}. The only mutable attribute is the
// role; demoting the last remaining admin is refused.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req accountPayload
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "role must be admin or staff")
		return
	}

	user := h.activeUser(w, r, id)
	if user == nil {
		return
	}

	if user.Role == model.RoleAdmin && req.Role != model.RoleAdmin {
		admins, err := store.CountActiveAdmins(r.Context(), h.DB)
		if err != nil {
			slog.Error("admin count failed", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		if admins <= 1 {
			jsonError(w, http.StatusConflict, "cannot demote the last admin")
			return
		}
	}

	if err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role); err != nil {
		slog.Error("role change failed", "username", user.Username, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	user.Role = req.Role

	slog.Info("account role changed",
		"by", GetClaims(r.Context()).Username, "username", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req accountPayload
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := h.activeUser(w, r, id)
	if user == nil {
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		slog.Error("password reset failed", "username", user.Username, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	slog.Info("account password reset",
		"by", GetClaims(r.Context()).Username, "username", user.Username)
	jsonMessage(w, http.StatusOK, "password reset")
}

// Delete handles DELETE /api/users/{id}. Accounts are soft-deleted so
// audit fields referencing them stay resolvable. Admins cannot delete
// themselves, which also keeps the last admin around.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	user := h.activeUser(w, r, id)
	if user == nil {
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		slog.Error("account deletion failed", "username", user.Username, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	slog.Info("account deleted", "by", claims.Username, "username", user.Username)
	jsonMessage(w, http.StatusOK, "user deleted")
}
