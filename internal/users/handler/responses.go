package handler

import (
	"time"

	"usermgmt/internal/users/models"
)

// UserResponse is the outward representation of an account. Email and phone
// arrive already masked for non-admin callers.
type UserResponse struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Username       string    `json:"username,omitempty"`
	Status         string    `json:"status"`
	Role           string    `json:"role"`
	ProfileVersion int       `json:"profile_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchResponse is the HTTP response for GET /users.
type SearchResponse struct {
	Items    []UserResponse `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func FromView(v *models.UserView) *UserResponse {
	return &UserResponse{
		ID:             v.ID.String(),
		FullName:       v.FullName,
		Email:          v.Email,
		Phone:          v.Phone,
		Username:       v.Username,
		Status:         v.Status,
		Role:           v.Role,
		ProfileVersion: v.ProfileVersion,
		CreatedAt:      v.CreatedAt,
	}
}

func FromPagedResult(res *models.PagedResult) *SearchResponse {
	items := make([]UserResponse, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, *FromView(&res.Items[i]))
	}
	return &SearchResponse{
		Items:    items,
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	}
}
