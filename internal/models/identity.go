package models

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Identity is the authenticated caller: either a TeacherIdentity or a
// StudentIdentity. Only students carry a class.
type Identity interface {
	Role() Role
	UserID() int32
	identity()
}

type TeacherIdentity struct {
	ID int32
}

func (TeacherIdentity) Role() Role      { return RoleTeacher }
func (t TeacherIdentity) UserID() int32 { return t.ID }
func (TeacherIdentity) identity()       {}

type StudentIdentity struct {
	ID      int32
	ClassID int32
}

func (StudentIdentity) Role() Role      { return RoleStudent }
func (s StudentIdentity) UserID() int32 { return s.ID }
func (StudentIdentity) identity()       {}
