package models

import "time"

type Class struct {
	ID              int32     `json:"classId"`
	Name            string    `json:"className"`
	ImageURL        string    `json:"imageUrl"`
	TreasureBoxOpen bool      `json:"treasureBoxOpen"`
	TeacherID       int32     `json:"teacherId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Student belongs to a class; ClassID is nil once the class is deleted.
type Student struct {
	ID              int32     `json:"studentId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	Biography       string    `json:"biography,omitempty"`
	FavoriteSubject string    `json:"favoriteSubject,omitempty"`
	KudosBalance    int32     `json:"kudosBalance"`
	ClassID         *int32    `json:"classId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Prize struct {
	ID          int32  `json:"prizeId"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description,omitempty"`
	KudosCost   int32  `json:"kudosCost"`
	Quantity    int32  `json:"quantity"`
	CategoryID  int32  `json:"categoryId"`
	ClassID     int32  `json:"classId"`
}

func (p *Prize) Available() bool {
	return p.Quantity >= 1
}
