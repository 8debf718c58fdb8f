package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/accounts/shared/api"
	"github.com/itchan-dev/accounts/shared/errors"
	mw "github.com/itchan-dev/accounts/shared/middleware"
	"github.com/itchan-dev/accounts/shared/utils"
)

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := mw.GetUserFromContext(r)
	if identity == nil {
		utils.WriteErrorAndStatusCode(w, errors.Unauthorized("Please sign-in"))
		return
	}

	user, err := h.users.FindUser(r.Context(), identity.UserId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, err := requireSelf(r, chi.URLParam(r, "userId"), false)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.UpdateUserRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), identity.UserId, body.Name)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser removes an account. Users delete themselves, admins anyone.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	identity, err := requireSelf(r, userId, true)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.users.DeleteUser(r.Context(), userId); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if identity.UserId == userId {
		h.clearAccessCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
