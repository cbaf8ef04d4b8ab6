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

const wishTracer = "wish-repository"

type PostgresWishRepository struct {
	db *sql.DB
}

func NewPostgresWishRepository(db *sql.DB) *PostgresWishRepository {
	return &PostgresWishRepository{db: db}
}

func (r *PostgresWishRepository) Create(ctx context.Context, w *models.Wish) (err error) {
	ctx, done := observability.ObserveCall(ctx, wishTracer, "CreateWish")
	defer func() { done(err) }()

	if w == nil {
		return fmt.Errorf("wish is nil")
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO wishes (student_id, prize_id) VALUES ($1, $2) RETURNING id, created_at`,
		w.StudentID, w.PrizeID,
	).Scan(&w.ID, &w.CreatedAt)
	if _, ok := uniqueConstraint(err); ok {
		return pkgerrors.ErrConflict.WithMessage("this prize is already in the wish list")
	}
	if err != nil {
		slog.Error("failed to create wish", "method", "CreateWish", "student_id", w.StudentID, "prize_id", w.PrizeID, "error", err)
		return fmt.Errorf("failed to create wish: %w", err)
	}
	slog.Info("wish created", "method", "CreateWish", "wish_id", w.ID, "student_id", w.StudentID)
	return nil
}

func (r *PostgresWishRepository) GetByID(ctx context.Context, id int32) (_ *models.Wish, err error) {
	ctx, done := observability.ObserveCall(ctx, wishTracer, "GetWishByID")
	defer func() { done(err) }()

	var w models.Wish
	err = r.db.QueryRowContext(ctx, `SELECT id, student_id, prize_id, created_at FROM wishes WHERE id = $1`, id).
		Scan(&w.ID, &w.StudentID, &w.PrizeID, &w.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NotFound("wish", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wish by id: %w", err)
	}
	return &w, nil
}

func (r *PostgresWishRepository) GetByStudentAndPrize(ctx context.Context, studentID, prizeID int32) (_ *models.Wish, err error) {
	ctx, done := observability.ObserveCall(ctx, wishTracer, "GetWishByStudentAndPrize")
	defer func() { done(err) }()

	var w models.Wish
	err = r.db.QueryRowContext(ctx,
		`SELECT id, student_id, prize_id, created_at FROM wishes WHERE student_id = $1 AND prize_id = $2`, studentID, prizeID,
	).Scan(&w.ID, &w.StudentID, &w.PrizeID, &w.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithMessage("no wish for prize %d can be found", prizeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wish: %w", err)
	}
	return &w, nil
}

func (r *PostgresWishRepository) ListByStudent(ctx context.Context, studentID int32) (_ []models.Wish, err error) {
	ctx, done := observability.ObserveCall(ctx, wishTracer, "ListWishesByStudent")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, student_id, prize_id, created_at FROM wishes WHERE student_id = $1 ORDER BY id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishes: %w", err)
	}
	defer rows.Close()

	wishes := []models.Wish{}
	for rows.Next() {
		var w models.Wish
		if err := rows.Scan(&w.ID, &w.StudentID, &w.PrizeID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wish: %w", err)
		}
		wishes = append(wishes, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list wishes: %w", err)
	}
	return wishes, nil
}

func (r *PostgresWishRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, wishTracer, "DeleteWish")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM wishes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wish: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("wish", id)
	}
	slog.Info("wish deleted", "method", "DeleteWish", "wish_id", id)
	return nil
}
