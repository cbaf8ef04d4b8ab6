package inmemdb_test

import (
	"context"
	"sync"
	"testing"

	"github.com/honeynil/KudosClassroom/internal/models"
	inmemdb "github.com/honeynil/KudosClassroom/internal/repository/inmem"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, balance, cost, quantity int32) (*inmemdb.DB, *models.Student, *models.Prize) {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.NewDB()

	class := &models.Class{Name: "5B", TeacherID: 1}
	require.NoError(t, inmemdb.NewClassRepository(db).Create(ctx, class))
	student := &models.Student{Username: "ann", PasswordHash: "hash", KudosBalance: balance, ClassID: &class.ID}
	require.NoError(t, inmemdb.NewStudentRepository(db).Create(ctx, student))
	prize := &models.Prize{Name: "Pencil", KudosCost: cost, Quantity: quantity, ClassID: class.ID}
	require.NoError(t, inmemdb.NewPrizeRepository(db).Create(ctx, prize))
	return db, student, prize
}

func TestTransactionRepository_Purchase(t *testing.T) {
	ctx := context.Background()

	t.Run("DebitsAndSnapshots", func(t *testing.T) {
		db, student, prize := seed(t, 100, 30, 2)
		txs := inmemdb.NewTransactionRepository(db)

		tx := &models.Transaction{PrizeID: prize.ID, StudentID: student.ID, ClassID: *student.ClassID}
		require.NoError(t, txs.Purchase(ctx, tx, nil))
		assert.Equal(t, "Pencil", tx.PrizeName)
		assert.Equal(t, int32(30), tx.PrizeCost)

		s, _ := inmemdb.NewStudentRepository(db).GetByID(ctx, student.ID)
		p, _ := inmemdb.NewPrizeRepository(db).GetByID(ctx, prize.ID)
		assert.Equal(t, int32(70), s.KudosBalance)
		assert.Equal(t, int32(1), p.Quantity)
	})

	t.Run("InsufficientFundsChangesNothing", func(t *testing.T) {
		db, student, prize := seed(t, 10, 30, 2)
		txs := inmemdb.NewTransactionRepository(db)

		err := txs.Purchase(ctx, &models.Transaction{PrizeID: prize.ID, StudentID: student.ID}, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)

		p, _ := inmemdb.NewPrizeRepository(db).GetByID(ctx, prize.ID)
		assert.Equal(t, int32(2), p.Quantity)
		list, _ := txs.ListByStudent(ctx, student.ID)
		assert.Empty(t, list)
	})

	t.Run("ConcurrentBuyersNeverOversell", func(t *testing.T) {
		db, student, prize := seed(t, 1000, 1, 3)
		txs := inmemdb.NewTransactionRepository(db)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := txs.Purchase(ctx, &models.Transaction{PrizeID: prize.ID, StudentID: student.ID}, nil); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, succeeded)
		p, _ := inmemdb.NewPrizeRepository(db).GetByID(ctx, prize.ID)
		assert.Equal(t, int32(0), p.Quantity)
	})
}

func TestTransactionRepository_Refund(t *testing.T) {
	ctx := context.Background()
	db, student, prize := seed(t, 100, 30, 1)
	txs := inmemdb.NewTransactionRepository(db)

	tx := &models.Transaction{PrizeID: prize.ID, StudentID: student.ID}
	require.NoError(t, txs.Purchase(ctx, tx, nil))
	require.NoError(t, inmemdb.NewPrizeRepository(db).Delete(ctx, prize.ID))

	require.NoError(t, txs.Refund(ctx, tx))
	s, _ := inmemdb.NewStudentRepository(db).GetByID(ctx, student.ID)
	assert.Equal(t, int32(100), s.KudosBalance)

	assert.ErrorIs(t, txs.Refund(ctx, tx), pkgerrors.ErrNotFound)
}

func TestTransactionRepository_RefundRefusesApproved(t *testing.T) {
	ctx := context.Background()
	db, student, prize := seed(t, 100, 30, 5)
	txs := inmemdb.NewTransactionRepository(db)

	tx := &models.Transaction{PrizeID: prize.ID, StudentID: student.ID}
	require.NoError(t, txs.Purchase(ctx, tx, nil))
	require.NoError(t, txs.Approve(ctx, tx.ID))

	// tx is the copy read before the approval
	assert.ErrorIs(t, txs.Refund(ctx, tx), pkgerrors.ErrTransactionAlreadyApproved)

	s, _ := inmemdb.NewStudentRepository(db).GetByID(ctx, student.ID)
	assert.Equal(t, int32(70), s.KudosBalance)
	p, _ := inmemdb.NewPrizeRepository(db).GetByID(ctx, prize.ID)
	assert.Equal(t, int32(4), p.Quantity)
	stored, err := txs.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Approved)
}

func TestClassRepository_DeleteDetachesStudents(t *testing.T) {
	ctx := context.Background()
	db, student, prize := seed(t, 0, 0, 1)

	require.NoError(t, inmemdb.NewClassRepository(db).Delete(ctx, *student.ClassID))

	s, err := inmemdb.NewStudentRepository(db).GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Nil(t, s.ClassID)
	_, err = inmemdb.NewPrizeRepository(db).GetByID(ctx, prize.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
