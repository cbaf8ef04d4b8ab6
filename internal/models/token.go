package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of both access and refresh tokens. Refresh
// tokens additionally carry a jti in RegisteredClaims.ID.
type TokenClaims struct {
	UserID   int32  `json:"userId"`
	UserType Role   `json:"userType"`
	ClassID  *int32 `json:"classId,omitempty"`
	jwt.RegisteredClaims
}

func NewTokenClaims(id Identity) TokenClaims {
	c := TokenClaims{UserID: id.UserID(), UserType: id.Role()}
	if s, ok := id.(StudentIdentity); ok {
		classID := s.ClassID
		c.ClassID = &classID
	}
	return c
}

// Identity converts the claims back into the tagged identity, rejecting
// shapes that cannot come from NewTokenClaims.
func (c TokenClaims) Identity() (Identity, error) {
	if c.UserID <= 0 {
		return nil, fmt.Errorf("invalid userId %d", c.UserID)
	}
	switch c.UserType {
	case RoleTeacher:
		if c.ClassID != nil {
			return nil, fmt.Errorf("teacher token carries a classId")
		}
		return TeacherIdentity{ID: c.UserID}, nil
	case RoleStudent:
		if c.ClassID == nil {
			return nil, fmt.Errorf("student token without classId")
		}
		return StudentIdentity{ID: c.UserID, ClassID: *c.ClassID}, nil
	default:
		return nil, fmt.Errorf("unknown userType %q", c.UserType)
	}
}

type LoginResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
	UserType     Role   `json:"userType"`
	UserID       int32  `json:"userId"`
	ClassID      *int32 `json:"classId,omitempty"`
}

type RefreshResult struct {
	Error        bool   `json:"error"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
}
