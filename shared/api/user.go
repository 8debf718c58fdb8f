package api

import "github.com/itchan-dev/accounts/shared/domain"

type UpdateUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// UsersResponse is one page of the admin user listing.
type UsersResponse struct {
	Users    []domain.User `json:"users"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}
