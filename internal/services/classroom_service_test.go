package service

import (
	"context"
	"testing"

	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassroomService_CreateTeacherConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	_, err := f.classroom.CreateTeacher(ctx, TeacherInput{Username: "maria", Email: "other@school.test", Password: "pw"})
	assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)

	_, err = f.classroom.CreateTeacher(ctx, TeacherInput{Username: "maria2", Email: "maria@school.test", Password: "pw"})
	assert.ErrorIs(t, err, pkgerrors.ErrEmailExists)

	_, err = f.classroom.CreateTeacher(ctx, TeacherInput{Username: "nopass", Email: "n@school.test"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestClassroomService_CreateStudent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	student, err := f.classroom.CreateStudent(ctx, f.teacher, f.class.ID, StudentInput{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), student.KudosBalance)
	require.NotNil(t, student.ClassID)
	assert.Equal(t, f.class.ID, *student.ClassID)
	assert.NotEqual(t, "pw", student.PasswordHash)

	_, err = f.classroom.CreateStudent(ctx, f.teacher, f.class.ID, StudentInput{Username: "bob", Password: "pw"})
	assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)

	_, err = f.classroom.CreateStudent(ctx, f.teacher, 404, StudentInput{Username: "carl", Password: "pw"})
	assert.EqualError(t, err, "no class with id 404 can be found")
}

func TestClassroomService_EditStudentKeepsBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 40, 10, 1)

	student, err := f.classroom.EditStudent(ctx, f.teacher, f.student.ID, StudentInput{
		FirstName: "Anna", FavoriteSubject: "Maths",
	})
	require.NoError(t, err)
	assert.Equal(t, "Anna", student.FirstName)
	assert.Equal(t, "ann", student.Username)
	assert.Equal(t, int32(40), f.balance(t))
}

func TestClassroomService_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	stranger, err := f.classroom.CreateTeacher(ctx, TeacherInput{Username: "eve", Email: "eve@school.test", Password: "pw"})
	require.NoError(t, err)
	eve := models.TeacherIdentity{ID: stranger.ID}

	_, err = f.classroom.CreateStudent(ctx, eve, f.class.ID, StudentInput{Username: "x", Password: "pw"})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	_, err = f.classroom.DeleteClass(ctx, eve, f.class.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	_, err = f.classroom.EditPrize(ctx, eve, f.prize.ID, PrizeInput{Name: "Mine"})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	_, err = f.classroom.DeleteStudents(ctx, eve, []int32{f.student.ID})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)

	evesCategory, err := f.classroom.CreateCategory(ctx, eve, "Toys")
	require.NoError(t, err)
	_, err = f.classroom.CreatePrize(ctx, f.teacher, f.class.ID, PrizeInput{Name: "Ball", CategoryID: evesCategory.ID})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
}

func TestClassroomService_EditClassesStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	second, err := f.classroom.CreateClass(ctx, f.teacher, ClassInput{Name: "6A"})
	require.NoError(t, err)

	updated, err := f.classroom.EditClasses(ctx, f.teacher, []ClassInput{
		{ID: f.class.ID, Name: "5B renamed"},
		{ID: 404, Name: "missing"},
		{ID: second.ID, Name: "6A renamed"},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	require.Len(t, updated, 1)
	assert.Equal(t, "5B renamed", updated[0].Name)

	got, err := f.store.Classes.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "6A", got.Name)
}

func TestClassroomService_PrizeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	negative := int32(-1)
	_, err := f.classroom.CreatePrize(ctx, f.teacher, f.class.ID, PrizeInput{Name: "Bad", Quantity: &negative, CategoryID: f.category.ID})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	_, err = f.classroom.CreatePrize(ctx, f.teacher, f.class.ID, PrizeInput{Name: "Bad", KudosCost: -5, CategoryID: f.category.ID})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	prize, err := f.classroom.CreatePrize(ctx, f.teacher, f.class.ID, PrizeInput{Name: "Sticker", CategoryID: f.category.ID})
	require.NoError(t, err)
	assert.Equal(t, int32(1), prize.Quantity)
}

func TestClassroomService_DeletePrizesDropsWishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100, 10, 1)

	wish, err := f.purchase.AddToWishlist(ctx, f.student, f.prize.ID)
	require.NoError(t, err)

	deleted, err := f.classroom.DeletePrizes(ctx, f.teacher, []int32{f.prize.ID, 404})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.Equal(t, []int32{f.prize.ID}, deleted)

	_, err = f.store.Wishes.GetByID(ctx, wish.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestClassroomService_DeleteCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0, 10, 1)

	replacement, err := f.classroom.CreateCategory(ctx, f.teacher, "Treats")
	require.NoError(t, err)

	_, err = f.classroom.DeleteCategory(ctx, f.teacher, f.category.ID, f.category.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	_, err = f.classroom.DeleteCategory(ctx, f.teacher, f.category.ID, 404)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = f.classroom.DeleteCategory(ctx, f.teacher, f.category.ID, replacement.ID)
	require.NoError(t, err)

	prize, err := f.store.Prizes.GetByID(ctx, f.prize.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, prize.CategoryID)

	_, err = f.store.Categories.GetByID(ctx, f.category.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestClassroomService_DeleteClassKeepsStudents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50, 10, 1)

	_, err := f.classroom.DeleteClass(ctx, f.teacher, f.class.ID)
	require.NoError(t, err)

	student, err := f.store.Students.GetByID(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Nil(t, student.ClassID)
	assert.Equal(t, int32(50), student.KudosBalance)

	_, err = f.store.Prizes.GetByID(ctx, f.prize.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
