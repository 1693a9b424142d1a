package models

import "github.com/alex-pricope/campus-election-system/storage"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Name  string       `json:"name"`
	Role  storage.Role `json:"role"`
	Token string       `json:"token"`
}

type RegisterECRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterUserRequest struct {
	Name       string `json:"name" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type UserResponse struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Username   string       `json:"username"`
	Department string       `json:"department,omitempty"`
	Year       string       `json:"year,omitempty"`
	Role       storage.Role `json:"role"`
}

func TransformUser(u *storage.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Department: u.Department,
		Year:       u.Year,
		Role:       u.Role,
	}
}
