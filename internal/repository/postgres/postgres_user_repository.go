package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

const userTracer = "user-repository"

const (
	teacherColumns = `id, first_name, last_name, username, email, password_hash, image_url, biography, created_at`
	studentColumns = `id, first_name, last_name, username, password_hash, image_url, biography, favorite_subject, kudos_balance, class_id, created_at`
)

type PostgresTeacherRepository struct {
	db *sql.DB
}

func NewPostgresTeacherRepository(db *sql.DB) *PostgresTeacherRepository {
	return &PostgresTeacherRepository{db: db}
}

func (r *PostgresTeacherRepository) Create(ctx context.Context, t *models.Teacher) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "CreateTeacher")
	defer func() { done(err) }()

	if t == nil {
		return fmt.Errorf("teacher is nil")
	}
	if t.Username == "" || t.PasswordHash == "" {
		return fmt.Errorf("username and password_hash are required")
	}

	query := `
	INSERT INTO teachers (first_name, last_name, username, email, password_hash, image_url, biography)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		t.FirstName, t.LastName, t.Username, t.Email, t.PasswordHash, t.ImageURL, t.Biography,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			slog.Warn("duplicate teacher", "method", "CreateTeacher", "username", t.Username, "constraint", constraint)
			return duplicateUserError(constraint)
		}
		slog.Error("failed to create teacher", "method", "CreateTeacher", "username", t.Username, "error", err)
		return fmt.Errorf("failed to create teacher: %w", err)
	}

	slog.Info("teacher created", "method", "CreateTeacher", "teacher_id", t.ID, "username", t.Username)
	return nil
}

func (r *PostgresTeacherRepository) GetByID(ctx context.Context, id int32) (_ *models.Teacher, err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "GetTeacherByID")
	defer func() { done(err) }()

	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NotFound("teacher", id)
	}
	if err != nil {
		slog.Error("failed to get teacher", "method", "GetTeacherByID", "teacher_id", id, "error", err)
		return nil, fmt.Errorf("failed to get teacher by id: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) GetByUsername(ctx context.Context, username string) (_ *models.Teacher, err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "GetTeacherByUsername")
	defer func() { done(err) }()

	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	t, err := scanTeacher(r.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE username = $1`, username))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrNotFound.WithMessage("no teacher with username %q can be found", username)
	case err != nil:
		return nil, fmt.Errorf("failed to get teacher by username: %w", err)
	}
	return t, nil
}

func (r *PostgresTeacherRepository) Update(ctx context.Context, t *models.Teacher) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "UpdateTeacher")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx,
		`UPDATE teachers SET first_name = $1, last_name = $2, email = $3, image_url = $4, biography = $5, password_hash = $6 WHERE id = $7`,
		t.FirstName, t.LastName, t.Email, t.ImageURL, t.Biography, t.PasswordHash, t.ID,
	)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return duplicateUserError(constraint)
		}
		return fmt.Errorf("failed to update teacher: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("teacher", t.ID)
	}
	return nil
}

type PostgresStudentRepository struct {
	db *sql.DB
}

func NewPostgresStudentRepository(db *sql.DB) *PostgresStudentRepository {
	return &PostgresStudentRepository{db: db}
}

func (r *PostgresStudentRepository) Create(ctx context.Context, s *models.Student) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "CreateStudent")
	defer func() { done(err) }()

	if s == nil {
		return fmt.Errorf("student is nil")
	}
	if s.Username == "" || s.PasswordHash == "" {
		return fmt.Errorf("username and password_hash are required")
	}

	query := `
	INSERT INTO students (first_name, last_name, username, password_hash, image_url, biography, favorite_subject, kudos_balance, class_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		s.FirstName, s.LastName, s.Username, s.PasswordHash, s.ImageURL, s.Biography, s.FavoriteSubject, s.KudosBalance, nullInt32(s.ClassID),
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			slog.Warn("duplicate student username", "method", "CreateStudent", "username", s.Username)
			return pkgerrors.ErrUsernameExists
		}
		slog.Error("failed to create student", "method", "CreateStudent", "username", s.Username, "error", err)
		return fmt.Errorf("failed to create student: %w", err)
	}

	slog.Info("student created", "method", "CreateStudent", "student_id", s.ID, "username", s.Username)
	return nil
}

func (r *PostgresStudentRepository) GetByID(ctx context.Context, id int32) (_ *models.Student, err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "GetStudentByID")
	defer func() { done(err) }()

	s, err := scanStudent(r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("student not found", "method", "GetStudentByID", "student_id", id)
		return nil, pkgerrors.NotFound("student", id)
	}
	if err != nil {
		slog.Error("failed to get student", "method", "GetStudentByID", "student_id", id, "error", err)
		return nil, fmt.Errorf("failed to get student by id: %w", err)
	}
	return s, nil
}

func (r *PostgresStudentRepository) GetByUsername(ctx context.Context, username string) (_ *models.Student, err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "GetStudentByUsername")
	defer func() { done(err) }()

	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	s, err := scanStudent(r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE username = $1`, username))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrNotFound.WithMessage("no student with username %q can be found", username)
	case err != nil:
		return nil, fmt.Errorf("failed to get student by username: %w", err)
	}
	return s, nil
}

func (r *PostgresStudentRepository) ListByClass(ctx context.Context, classID int32) (_ []models.Student, err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "ListStudentsByClass")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY last_name, first_name, id`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := []models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

func (r *PostgresStudentRepository) Update(ctx context.Context, s *models.Student) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "UpdateStudent")
	defer func() { done(err) }()

	// kudos_balance is left alone: only the purchase protocol and SetBalance move it.
	res, err := r.db.ExecContext(ctx,
		`UPDATE students SET first_name = $1, last_name = $2, username = $3, password_hash = $4, image_url = $5, biography = $6, favorite_subject = $7 WHERE id = $8`,
		s.FirstName, s.LastName, s.Username, s.PasswordHash, s.ImageURL, s.Biography, s.FavoriteSubject, s.ID,
	)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return pkgerrors.ErrUsernameExists
		}
		return fmt.Errorf("failed to update student: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("student", s.ID)
	}
	return nil
}

func (r *PostgresStudentRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "DeleteStudent")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("student", id)
	}
	slog.Info("student deleted", "method", "DeleteStudent", "student_id", id)
	return nil
}

func (r *PostgresStudentRepository) SetBalance(ctx context.Context, id, balance int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, userTracer, "SetStudentBalance")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE students SET kudos_balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		slog.Error("failed to set balance", "method", "SetBalance", "student_id", id, "error", err)
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("student", id)
	}
	slog.Info("balance set", "method", "SetBalance", "student_id", id, "balance", balance)
	return nil
}

func duplicateUserError(constraint string) error {
	if strings.Contains(constraint, "email") {
		return pkgerrors.ErrEmailExists
	}
	return pkgerrors.ErrUsernameExists
}

func scanTeacher(row rowScanner) (*models.Teacher, error) {
	var t models.Teacher
	if err := row.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Username, &t.Email,
		&t.PasswordHash, &t.ImageURL, &t.Biography, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanStudent(row rowScanner) (*models.Student, error) {
	var s models.Student
	var classID sql.NullInt32
	if err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Username, &s.PasswordHash,
		&s.ImageURL, &s.Biography, &s.FavoriteSubject, &s.KudosBalance, &classID, &s.CreatedAt); err != nil {
		return nil, err
	}
	if classID.Valid {
		id := classID.Int32
		s.ClassID = &id
	}
	return &s, nil
}

func nullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}
