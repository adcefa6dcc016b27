package models

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID           int64     `json:"id" example:"1"`                      // User ID
	Username     string    `json:"username" example:"jdoe"`             // Login name
	Email        string    `json:"email" example:"user@example.com"`    // User email
	FirstName    string    `json:"first_name" example:"John"`           // User first name
	LastName     string    `json:"last_name" example:"Doe"`             // User last name
	PasswordHash string    `json:"-"`
	Role         string    `json:"role" example:"User"`
	CreatedAt    time.Time `json:"created_at"`
}
