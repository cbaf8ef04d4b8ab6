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

const prizeTracer = "prize-repository"

const prizeColumns = `id, name, image_url, description, kudos_cost, quantity, category_id, class_id`

type PostgresPrizeRepository struct {
	db *sql.DB
}

func NewPostgresPrizeRepository(db *sql.DB) *PostgresPrizeRepository {
	return &PostgresPrizeRepository{db: db}
}

func (r *PostgresPrizeRepository) Create(ctx context.Context, p *models.Prize) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "CreatePrize")
	defer func() { done(err) }()

	if p == nil {
		return fmt.Errorf("prize is nil")
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO prizes (name, image_url, description, kudos_cost, quantity, category_id, class_id) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Name, p.ImageURL, p.Description, p.KudosCost, p.Quantity, p.CategoryID, p.ClassID,
	).Scan(&p.ID)
	if err != nil {
		slog.Error("failed to create prize", "method", "CreatePrize", "class_id", p.ClassID, "error", err)
		return fmt.Errorf("failed to create prize: %w", err)
	}
	slog.Info("prize created", "method", "CreatePrize", "prize_id", p.ID, "class_id", p.ClassID)
	return nil
}

func (r *PostgresPrizeRepository) GetByID(ctx context.Context, id int32) (_ *models.Prize, err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "GetPrizeByID")
	defer func() { done(err) }()

	p, err := scanPrize(r.db.QueryRowContext(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("prize not found", "method", "GetPrizeByID", "prize_id", id)
		return nil, pkgerrors.NotFound("prize", id)
	}
	if err != nil {
		slog.Error("failed to get prize", "method", "GetPrizeByID", "prize_id", id, "error", err)
		return nil, fmt.Errorf("failed to get prize by id: %w", err)
	}
	return p, nil
}

func (r *PostgresPrizeRepository) ListByClass(ctx context.Context, classID int32) (_ []models.Prize, err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "ListPrizesByClass")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+prizeColumns+` FROM prizes WHERE class_id = $1 ORDER BY id`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	defer rows.Close()

	prizes := []models.Prize{}
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		prizes = append(prizes, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	return prizes, nil
}

func (r *PostgresPrizeRepository) Update(ctx context.Context, p *models.Prize) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "UpdatePrize")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx,
		`UPDATE prizes SET name = $1, image_url = $2, description = $3, kudos_cost = $4, quantity = $5, category_id = $6 WHERE id = $7`,
		p.Name, p.ImageURL, p.Description, p.KudosCost, p.Quantity, p.CategoryID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update prize: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("prize", p.ID)
	}
	return nil
}

func (r *PostgresPrizeRepository) Delete(ctx context.Context, id int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "DeletePrize")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM prizes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prize: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("prize", id)
	}
	slog.Info("prize deleted", "method", "DeletePrize", "prize_id", id)
	return nil
}

func scanPrize(row rowScanner) (*models.Prize, error) {
	var p models.Prize
	if err := row.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Description, &p.KudosCost, &p.Quantity, &p.CategoryID, &p.ClassID); err != nil {
		return nil, err
	}
	return &p, nil
}

type PostgresCategoryRepository struct {
	db *sql.DB
}

func NewPostgresCategoryRepository(db *sql.DB) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{db: db}
}

func (r *PostgresCategoryRepository) Create(ctx context.Context, c *models.Category) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "CreateCategory")
	defer func() { done(err) }()

	if c == nil {
		return fmt.Errorf("category is nil")
	}
	err = r.db.QueryRowContext(ctx, `INSERT INTO categories (label, teacher_id) VALUES ($1, $2) RETURNING id`, c.Label, c.TeacherID).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	slog.Info("category created", "method", "CreateCategory", "category_id", c.ID, "teacher_id", c.TeacherID)
	return nil
}

func (r *PostgresCategoryRepository) GetByID(ctx context.Context, id int32) (_ *models.Category, err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "GetCategoryByID")
	defer func() { done(err) }()

	var c models.Category
	err = r.db.QueryRowContext(ctx, `SELECT id, label, teacher_id FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Label, &c.TeacherID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by id: %w", err)
	}
	return &c, nil
}

func (r *PostgresCategoryRepository) ListByTeacher(ctx context.Context, teacherID int32) (_ []models.Category, err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "ListCategoriesByTeacher")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, label, teacher_id FROM categories WHERE teacher_id = $1 ORDER BY id`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Label, &c.TeacherID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *PostgresCategoryRepository) Update(ctx context.Context, c *models.Category) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "UpdateCategory")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE categories SET label = $1 WHERE id = $2`, c.Label, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("category", c.ID)
	}
	return nil
}

func (r *PostgresCategoryRepository) Delete(ctx context.Context, id, replaceID int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, prizeTracer, "DeleteCategory")
	defer func() { done(err) }()

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := dbTx.ExecContext(ctx, `UPDATE prizes SET category_id = $1 WHERE category_id = $2`, replaceID, id)
	if err != nil {
		slog.Error("failed to reassign prizes", "method", "DeleteCategory", "category_id", id, "replace_id", replaceID, "error", err)
		return rollback(dbTx, "DeleteCategory", fmt.Errorf("failed to reassign prizes: %w", err))
	}
	moved, _ := res.RowsAffected()

	res, err = dbTx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return rollback(dbTx, "DeleteCategory", fmt.Errorf("failed to delete category: %w", err))
	}
	if ok, err := affected(res); err != nil || !ok {
		if err == nil {
			err = pkgerrors.NotFound("category", id)
		}
		return rollback(dbTx, "DeleteCategory", err)
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Info("category deleted", "method", "DeleteCategory", "category_id", id, "replace_id", replaceID, "prizes_moved", moved)
	return nil
}
