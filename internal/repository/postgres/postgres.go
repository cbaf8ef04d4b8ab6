package repository

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	repo "github.com/honeynil/KudosClassroom/internal/repository"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// rollback aborts dbTx and keeps err as the cause.
func rollback(dbTx *sql.Tx, method string, err error) error {
	if rbErr := dbTx.Rollback(); rbErr != nil {
		slog.Error("rollback failed", "method", method, "error", rbErr)
		return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
	}
	return err
}

// uniqueConstraint returns the violated constraint name when err is a
// unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// affected reports whether res changed at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NewStore wires every Postgres repository onto one connection pool.
func NewStore(db *sql.DB) *repo.Store {
	return &repo.Store{
		Teachers:     NewPostgresTeacherRepository(db),
		Classes:      NewPostgresClassRepository(db),
		Students:     NewPostgresStudentRepository(db),
		Prizes:       NewPostgresPrizeRepository(db),
		Categories:   NewPostgresCategoryRepository(db),
		Transactions: NewPostgresTransactionRepository(db),
		Wishes:       NewPostgresWishRepository(db),
	}
}
