package models

import "time"

type Teacher struct {
	ID           int32     `json:"teacherId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Biography    string    `json:"biography,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Category struct {
	ID        int32  `json:"categoryId"`
	Label     string `json:"label"`
	TeacherID int32  `json:"teacherId"`
}
