package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/accounts/shared/api"
	"github.com/itchan-dev/accounts/shared/domain"
	"github.com/itchan-dev/accounts/shared/utils"
)

// ListUsers handles GET /v1/admin/users?page=&pageSize=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parseIntQuery(r, "page", defaultPage)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	pageSize, err := parseIntQuery(r, "pageSize", defaultPageSize)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	pageSize = min(pageSize, maxPageSize)

	users, total, err := h.users.FindUsers(r.Context(), page, pageSize)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}

	utils.WriteJSON(w, http.StatusOK, api.UsersResponse{Users: users, Total: total, Page: page, PageSize: pageSize})
}

// BlockUser handles POST /v1/admin/users/{userId}/block
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// UnblockUser handles DELETE /v1/admin/users/{userId}/block
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	user, err := h.users.SetBlocked(r.Context(), chi.URLParam(r, "userId"), blocked)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}
