package models

type TeacherView struct {
	Teacher
	Categories []Category  `json:"categories"`
	Classes    []ClassView `json:"classes"`
}

type ClassView struct {
	Class
	Students []StudentRecord `json:"students"`
	Prizes   []Prize         `json:"prizes"`
}

type StudentRecord struct {
	Student
	Transactions []Transaction `json:"transactions"`
}

type StudentView struct {
	Student
	Class        *Class        `json:"class"`
	Transactions []Transaction `json:"transactions"`
	WishList     []WishView    `json:"wishList"`
}

type WishView struct {
	Wish
	Prize          *Prize `json:"prize"`
	PrizeAvailable bool   `json:"prizeAvailable"`
}

type SignedUpload struct {
	SignedRequest string `json:"signedRequest"`
	URL           string `json:"url"`
}
