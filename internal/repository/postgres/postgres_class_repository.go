package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

const classTracer = "class-repository"

const classColumns = `id, class_name, image_url, treasure_box_open, teacher_id, created_at`

type PostgresClassRepository struct {
	db *sql.DB
}

func NewPostgresClassRepository(db *sql.DB) *PostgresClassRepository {
	return &PostgresClassRepository{db: db}
}

func (r *PostgresClassRepository) Create(ctx context.Context, c *models.Class) (err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "CreateClass")
	defer func() { done(err) }()

	if c == nil {
		return fmt.Errorf("class is nil")
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO classes (class_name, image_url, teacher_id) VALUES ($1, $2, $3) RETURNING id, treasure_box_open, created_at`,
		c.Name, c.ImageURL, c.TeacherID,
	).Scan(&c.ID, &c.TreasureBoxOpen, &c.CreatedAt)
	if err != nil {
		slog.Error("failed to create class", "method", "CreateClass", "teacher_id", c.TeacherID, "error", err)
		return fmt.Errorf("failed to create class: %w", err)
	}
	slog.Info("class created", "method", "CreateClass", "class_id", c.ID, "teacher_id", c.TeacherID)
	return nil
}

func (r *PostgresClassRepository) GetByID(ctx context.Context, id int32) (_ *models.Class, err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "GetClassByID")
	defer func() { done(err) }()

	var c models.Class
	err = r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.ImageURL, &c.TreasureBoxOpen, &c.TeacherID, &c.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("class not found", "method", "GetClassByID", "class_id", id)
		return nil, pkgerrors.NotFound("class", id)
	}
	if err != nil {
		slog.Error("failed to get class", "method", "GetClassByID", "class_id", id, "error", err)
		return nil, fmt.Errorf("failed to get class by id: %w", err)
	}
	return &c, nil
}

func (r *PostgresClassRepository) ListByTeacher(ctx context.Context, teacherID int32) (_ []models.Class, err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "ListClassesByTeacher")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes WHERE teacher_id = $1 ORDER BY id`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	classes := []models.Class{}
	for rows.Next() {
		var c models.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.TreasureBoxOpen, &c.TeacherID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}

func (r *PostgresClassRepository) Update(ctx context.Context, c *models.Class) (err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "UpdateClass")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE classes SET class_name = $1, image_url = $2 WHERE id = $3`, c.Name, c.ImageURL, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update class: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("class", c.ID)
	}
	return nil
}

func (r *PostgresClassRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "DeleteClass")
	defer func() { done(err) }()

	// prizes cascade, students.class_id is set to NULL by the schema
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete class", "method", "DeleteClass", "class_id", id, "error", err)
		return fmt.Errorf("failed to delete class: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("class", id)
	}
	slog.Info("class deleted", "method", "DeleteClass", "class_id", id)
	return nil
}

func (r *PostgresClassRepository) ToggleTreasureBox(ctx context.Context, id int32) (_ bool, err error) {
	ctx, done := observability.ObserveCall(ctx, classTracer, "ToggleTreasureBox")
	defer func() { done(err) }()

	var open bool
	err = r.db.QueryRowContext(ctx,
		`UPDATE classes SET treasure_box_open = NOT treasure_box_open WHERE id = $1 RETURNING treasure_box_open`, id,
	).Scan(&open)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, pkgerrors.NotFound("class", id)
	}
	if err != nil {
		slog.Error("failed to toggle treasure box", "method", "ToggleTreasureBox", "class_id", id, "error", err)
		return false, fmt.Errorf("failed to toggle treasure box: %w", err)
	}
	slog.Info("treasure box toggled", "method", "ToggleTreasureBox", "class_id", id, "open", open)
	return open, nil
}
