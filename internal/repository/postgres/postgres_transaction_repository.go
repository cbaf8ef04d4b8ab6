package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const transactionTracer = "transaction-repository"

const transactionColumns = `id, approved, prize_id, prize_name, prize_image_url, prize_cost, student_id, class_id, given_date, created_at`

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) Purchase(ctx context.Context, tx *models.Transaction, wishID *int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "PurchaseTransaction")
	defer func() { done(err) }()

	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("student_id", int(tx.StudentID)),
		attribute.Int("prize_id", int(tx.PrizeID)),
	)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Purchase", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// The conditional update locks the prize row, so the snapshot and the
	// stock check see the same values.
	err = dbTx.QueryRowContext(ctx,
		`UPDATE prizes SET quantity = quantity - 1 WHERE id = $1 AND quantity >= 1 RETURNING name, image_url, kudos_cost`,
		tx.PrizeID,
	).Scan(&tx.PrizeName, &tx.PrizeImageURL, &tx.PrizeCost)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("prize unavailable", "method", "Purchase", "prize_id", tx.PrizeID)
		return rollback(dbTx, "Purchase", pkgerrors.ErrPrizeUnavailable)
	}
	if err != nil {
		slog.Error("failed to take prize unit", "method", "Purchase", "prize_id", tx.PrizeID, "error", err)
		return rollback(dbTx, "Purchase", fmt.Errorf("failed to take prize unit: %w", err))
	}

	var balance int32
	err = dbTx.QueryRowContext(ctx,
		`UPDATE students SET kudos_balance = kudos_balance - $1 WHERE id = $2 AND kudos_balance >= $1 RETURNING kudos_balance`,
		tx.PrizeCost, tx.StudentID,
	).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("insufficient funds", "method", "Purchase", "student_id", tx.StudentID, "cost", tx.PrizeCost)
		return rollback(dbTx, "Purchase", pkgerrors.ErrInsufficientFunds)
	}
	if err != nil {
		slog.Error("failed to debit student", "method", "Purchase", "student_id", tx.StudentID, "error", err)
		return rollback(dbTx, "Purchase", fmt.Errorf("failed to debit student: %w", err))
	}

	err = dbTx.QueryRowContext(ctx,
		`INSERT INTO transactions (approved, prize_id, prize_name, prize_image_url, prize_cost, student_id, class_id) VALUES (false, $1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		tx.PrizeID, tx.PrizeName, tx.PrizeImageURL, tx.PrizeCost, tx.StudentID, tx.ClassID,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		slog.Error("failed to create transaction", "method", "Purchase", "student_id", tx.StudentID, "error", err)
		return rollback(dbTx, "Purchase", fmt.Errorf("failed to create transaction: %w", err))
	}

	if wishID != nil {
		res, err := dbTx.ExecContext(ctx, `DELETE FROM wishes WHERE id = $1 AND student_id = $2`, *wishID, tx.StudentID)
		if err != nil {
			slog.Error("failed to delete wish", "method", "Purchase", "wish_id", *wishID, "error", err)
			return rollback(dbTx, "Purchase", fmt.Errorf("failed to delete wish: %w", err))
		}
		if ok, err := affected(res); err != nil || !ok {
			if err == nil {
				err = pkgerrors.NotFound("wish", *wishID)
			}
			return rollback(dbTx, "Purchase", err)
		}
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Purchase", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	tx.Approved = false
	slog.Info("purchase stored", "method", "Purchase", "id", tx.ID, "student_id", tx.StudentID, "prize_id", tx.PrizeID, "cost", tx.PrizeCost, "balance", balance)
	return nil
}

func (r *PostgresTransactionRepository) Refund(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "RefundTransaction")
	defer func() { done(err) }()

	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Refund", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Only a pending row can be deleted; a concurrent approval or a second
	// refund leaves nothing to delete.
	res, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND approved = false`, tx.ID)
	if err != nil {
		slog.Error("failed to delete transaction", "method", "Refund", "id", tx.ID, "error", err)
		return rollback(dbTx, "Refund", fmt.Errorf("failed to delete transaction: %w", err))
	}
	if ok, err := affected(res); err != nil {
		return rollback(dbTx, "Refund", err)
	} else if !ok {
		return rollback(dbTx, "Refund", r.refundConflict(ctx, dbTx, tx.ID))
	}

	if _, err = dbTx.ExecContext(ctx,
		`UPDATE students SET kudos_balance = kudos_balance + $1 WHERE id = $2`,
		tx.PrizeCost, tx.StudentID,
	); err != nil {
		slog.Error("failed to credit student", "method", "Refund", "student_id", tx.StudentID, "error", err)
		return rollback(dbTx, "Refund", fmt.Errorf("failed to credit student: %w", err))
	}

	// The prize may have been deleted since; the refund still goes through.
	if _, err = dbTx.ExecContext(ctx, `UPDATE prizes SET quantity = quantity + 1 WHERE id = $1`, tx.PrizeID); err != nil {
		slog.Error("failed to restock prize", "method", "Refund", "prize_id", tx.PrizeID, "error", err)
		return rollback(dbTx, "Refund", fmt.Errorf("failed to restock prize: %w", err))
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Refund", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("transaction refunded", "method", "Refund", "id", tx.ID, "student_id", tx.StudentID, "amount", tx.PrizeCost)
	return nil
}

// refundConflict tells an approved transaction from a missing one after the
// guarded delete matched no row.
func (r *PostgresTransactionRepository) refundConflict(ctx context.Context, dbTx *sql.Tx, id int32) error {
	var approved bool
	err := dbTx.QueryRowContext(ctx, `SELECT approved FROM transactions WHERE id = $1`, id).Scan(&approved)
	if stderrors.Is(err, sql.ErrNoRows) {
		return pkgerrors.NotFound("transaction", id)
	}
	if err != nil {
		slog.Error("failed to read transaction", "method", "Refund", "id", id, "error", err)
		return fmt.Errorf("failed to read transaction: %w", err)
	}
	if approved {
		slog.Warn("refund of approved transaction refused", "method", "Refund", "id", id)
		return pkgerrors.ErrTransactionAlreadyApproved
	}
	return pkgerrors.NotFound("transaction", id)
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id int32) (_ *models.Transaction, err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "GetTransactionByID")
	defer func() { done(err) }()

	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("transaction not found", "method", "GetByID", "transaction_id", id)
		return nil, pkgerrors.NotFound("transaction", id)
	}
	if err != nil {
		slog.Error("failed to get transaction by id", "method", "GetByID", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to get transaction by id: %w", err)
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) ListByStudent(ctx context.Context, studentID int32) (_ []models.Transaction, err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "ListTransactionsByStudent")
	defer func() { done(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE student_id = $1 ORDER BY id`, studentID)
	if err != nil {
		slog.Error("failed to list transactions", "method", "ListByStudent", "student_id", studentID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *PostgresTransactionRepository) Approve(ctx context.Context, id int32) (err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "ApproveTransaction")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET approved = true WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to approve transaction", "method", "Approve", "transaction_id", id, "error", err)
		return fmt.Errorf("failed to approve transaction: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("transaction", id)
	}
	slog.Info("transaction approved", "method", "Approve", "transaction_id", id)
	return nil
}

func (r *PostgresTransactionRepository) MarkGiven(ctx context.Context, id int32, at time.Time) (err error) {
	ctx, done := observability.ObserveCall(ctx, transactionTracer, "MarkTransactionGiven")
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET given_date = $1 WHERE id = $2`, at, id)
	if err != nil {
		slog.Error("failed to mark transaction given", "method", "MarkGiven", "transaction_id", id, "error", err)
		return fmt.Errorf("failed to mark transaction given: %w", err)
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return pkgerrors.NotFound("transaction", id)
	}
	slog.Info("transaction marked given", "method", "MarkGiven", "transaction_id", id, "given_date", at)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var given sql.NullTime
	if err := row.Scan(&tx.ID, &tx.Approved, &tx.PrizeID, &tx.PrizeName, &tx.PrizeImageURL,
		&tx.PrizeCost, &tx.StudentID, &tx.ClassID, &given, &tx.CreatedAt); err != nil {
		return nil, err
	}
	if given.Valid {
		t := given.Time
		tx.GivenDate = &t
	}
	return &tx, nil
}
