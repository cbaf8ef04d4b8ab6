package auth

import (
	"context"

	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

func RequireIdentity(ctx context.Context) (models.Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return nil, pkgerrors.ErrUnauthenticated
	}
	return id, nil
}

func RequireTeacher(ctx context.Context) (models.TeacherIdentity, error) {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return models.TeacherIdentity{}, err
	}
	t, ok := id.(models.TeacherIdentity)
	if !ok {
		return models.TeacherIdentity{}, pkgerrors.Forbidden("you must be a %s to do this action", models.RoleTeacher)
	}
	return t, nil
}

func RequireStudent(ctx context.Context) (models.StudentIdentity, error) {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return models.StudentIdentity{}, err
	}
	s, ok := id.(models.StudentIdentity)
	if !ok {
		return models.StudentIdentity{}, pkgerrors.Forbidden("you must be a %s to do this action", models.RoleStudent)
	}
	return s, nil
}
