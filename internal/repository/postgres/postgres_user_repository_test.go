package repository_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/KudosClassroom/internal/models"
	repository "github.com/honeynil/KudosClassroom/internal/repository/postgres"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentRowColumns = []string{
	"id", "first_name", "last_name", "username", "password_hash", "image_url", "biography", "favorite_subject", "kudos_balance", "class_id", "created_at",
}

func TestPostgresTeacherRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTeacherRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		teacher := &models.Teacher{Username: "mrsmith", Email: "smith@school.org", PasswordHash: "hash"}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO teachers`)).
			WithArgs("", "", "mrsmith", "smith@school.org", "hash", "", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int32(1), now))

		assert.NoError(t, repo.Create(ctx, teacher))
		assert.Equal(t, int32(1), teacher.ID)
		assert.Equal(t, now, teacher.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		teacher := &models.Teacher{Username: "mrsmith", Email: "other@school.org", PasswordHash: "hash"}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO teachers`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "teachers_username_key"})

		err := repo.Create(ctx, teacher)
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		teacher := &models.Teacher{Username: "mrsjones", Email: "smith@school.org", PasswordHash: "hash"}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO teachers`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "teachers_email_key"})

		err := repo.Create(ctx, teacher)
		assert.ErrorIs(t, err, pkgerrors.ErrEmailExists)
		assert.ErrorIs(t, err, pkgerrors.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingPassword", func(t *testing.T) {
		err := repo.Create(ctx, &models.Teacher{Username: "nopass"})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTeacherRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTeacherRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM teachers WHERE username = $1`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		teacher, err := repo.GetByUsername(ctx, "ghost")
		assert.Nil(t, teacher)
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM teachers WHERE username = $1`)).
			WithArgs("mrsmith").
			WillReturnError(fmt.Errorf("database error"))

		teacher, err := repo.GetByUsername(ctx, "mrsmith")
		assert.Nil(t, teacher)
		assert.Contains(t, err.Error(), "failed to get teacher by username")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStudentRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresStudentRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("WithClass", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM students WHERE id = $1`)).
			WithArgs(int32(3)).
			WillReturnRows(sqlmock.NewRows(studentRowColumns).
				AddRow(int32(3), "Ann", "Lee", "ann", "hash", "", "", "math", int32(100), int32(2), now))

		student, err := repo.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int32(100), student.KudosBalance)
		require.NotNil(t, student.ClassID)
		assert.Equal(t, int32(2), *student.ClassID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WithoutClass", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM students WHERE id = $1`)).
			WithArgs(int32(4)).
			WillReturnRows(sqlmock.NewRows(studentRowColumns).
				AddRow(int32(4), "Bo", "Kim", "bo", "hash", "", "", "", int32(0), nil, now))

		student, err := repo.GetByID(ctx, 4)
		require.NoError(t, err)
		assert.Nil(t, student.ClassID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM students WHERE id = $1`)).
			WithArgs(int32(5)).
			WillReturnRows(sqlmock.NewRows(studentRowColumns))

		student, err := repo.GetByID(ctx, 5)
		assert.Nil(t, student)
		assert.EqualError(t, err, "no student with id 5 can be found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStudentRepository_CreateAndSetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresStudentRepository(db)
	ctx := context.Background()

	t.Run("DuplicateUsername", func(t *testing.T) {
		classID := int32(2)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO students`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "students_username_key"})

		err := repo.Create(ctx, &models.Student{Username: "ann", PasswordHash: "hash", ClassID: &classID})
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetBalance", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE students SET kudos_balance = $1 WHERE id = $2`)).
			WithArgs(int32(250), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetBalance(ctx, 3, 250))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetBalanceNotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE students SET kudos_balance = $1 WHERE id = $2`)).
			WithArgs(int32(250), int32(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.SetBalance(ctx, 99, 250), pkgerrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
