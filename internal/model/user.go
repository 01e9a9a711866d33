// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Staff users may create other users. Superusers additionally hold the
// administrative privilege needed to read the audit log.
//
// PasswordHash is the bcrypt output and is never serialised. Accounts created
// through GitHub sign-in have an empty hash and a non-zero GitHubID.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"-"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"-"`
	AvatarURL    string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}
