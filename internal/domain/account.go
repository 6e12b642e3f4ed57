package domain

import "time"

// Account is the persisted identity aggregate. Users and admins share the
// shape and live in separate tables.
type Account struct {
	AccountID    string    `json:"id" dynamodbav:"account_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	Address      string    `json:"address,omitempty" dynamodbav:"address"`
	Gender       string    `json:"gender,omitempty" dynamodbav:"gender"`
	Phone        string    `json:"phone,omitempty" dynamodbav:"phone"`
	Approved     bool      `json:"approved" dynamodbav:"approved"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SignupRequest is the registration form shared by user signup and admin onboarding.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Address  string `json:"address"`
	Gender   string `json:"gender"`
	Phone    string `json:"phone"`
}

// PendingAccount is a signup awaiting confirmation. The password is already
// hashed when the record is created.
type PendingAccount struct {
	Username     string
	Email        string
	PasswordHash string
	Address      string
	Gender       string
	Phone        string
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
}
