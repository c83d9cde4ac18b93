package dto

import "github.com/noah-isme/learning-journey-api/internal/models"

// CreateUserRequest captures POST /users payload.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"fullName" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
}

// UpdateUserRequest captures PUT /users/:id payload.
type UpdateUserRequest struct {
	FullName string          `json:"fullName" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	Active   *bool           `json:"active,omitempty"`
}
