package inmemdb

import (
	"context"
	"time"

	"github.com/honeynil/KudosClassroom/internal/models"
	repo "github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

type transactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) repo.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Purchase(_ context.Context, tx *models.Transaction, wishID *int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	// every check runs before the first write
	prize, ok := r.db.prizes[tx.PrizeID]
	if !ok || !prize.Available() {
		return pkgerrors.ErrPrizeUnavailable
	}
	student, ok := r.db.students[tx.StudentID]
	if !ok {
		return pkgerrors.NotFound("student", tx.StudentID)
	}
	if student.KudosBalance < prize.KudosCost {
		return pkgerrors.ErrInsufficientFunds
	}
	if wishID != nil {
		w, ok := r.db.wishes[*wishID]
		if !ok || w.StudentID != tx.StudentID {
			return pkgerrors.NotFound("wish", *wishID)
		}
	}

	prize.Quantity--
	student.KudosBalance -= prize.KudosCost

	tx.ID = r.db.nextID("transactions")
	tx.Approved = false
	tx.PrizeName = prize.Name
	tx.PrizeImageURL = prize.ImageURL
	tx.PrizeCost = prize.KudosCost
	tx.GivenDate = nil
	tx.CreatedAt = r.db.now()
	row := *tx
	r.db.transactions[tx.ID] = &row

	if wishID != nil {
		delete(r.db.wishes, *wishID)
	}
	return nil
}

func (r *transactionRepository) Refund(_ context.Context, tx *models.Transaction) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	stored, ok := r.db.transactions[tx.ID]
	if !ok {
		return pkgerrors.NotFound("transaction", tx.ID)
	}
	if stored.Approved {
		return pkgerrors.ErrTransactionAlreadyApproved
	}
	delete(r.db.transactions, tx.ID)
	if s, ok := r.db.students[tx.StudentID]; ok {
		s.KudosBalance += tx.PrizeCost
	}
	if p, ok := r.db.prizes[tx.PrizeID]; ok {
		p.Quantity++
	}
	return nil
}

func (r *transactionRepository) GetByID(_ context.Context, id int32) (*models.Transaction, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if tx, ok := r.db.transactions[id]; ok {
		row := *tx
		return &row, nil
	}
	return nil, pkgerrors.NotFound("transaction", id)
}

func (r *transactionRepository) ListByStudent(_ context.Context, studentID int32) ([]models.Transaction, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return sortedValues(r.db.transactions, func(tx *models.Transaction) bool { return tx.StudentID == studentID }), nil
}

func (r *transactionRepository) Approve(_ context.Context, id int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	tx, ok := r.db.transactions[id]
	if !ok {
		return pkgerrors.NotFound("transaction", id)
	}
	tx.Approved = true
	return nil
}

func (r *transactionRepository) MarkGiven(_ context.Context, id int32, at time.Time) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	tx, ok := r.db.transactions[id]
	if !ok {
		return pkgerrors.NotFound("transaction", id)
	}
	given := at
	tx.GivenDate = &given
	return nil
}

type wishRepository struct {
	db *DB
}

func NewWishRepository(db *DB) repo.WishRepository {
	return &wishRepository{db: db}
}

func (r *wishRepository) Create(_ context.Context, w *models.Wish) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.prizes[w.PrizeID]; !ok {
		return pkgerrors.NotFound("prize", w.PrizeID)
	}
	for _, other := range r.db.wishes {
		if other.StudentID == w.StudentID && other.PrizeID == w.PrizeID {
			return pkgerrors.ErrConflict.WithMessage("this prize is already in the wish list")
		}
	}
	w.ID = r.db.nextID("wishes")
	w.CreatedAt = r.db.now()
	row := *w
	r.db.wishes[w.ID] = &row
	return nil
}

func (r *wishRepository) GetByID(_ context.Context, id int32) (*models.Wish, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if w, ok := r.db.wishes[id]; ok {
		row := *w
		return &row, nil
	}
	return nil, pkgerrors.NotFound("wish", id)
}

func (r *wishRepository) GetByStudentAndPrize(_ context.Context, studentID, prizeID int32) (*models.Wish, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, w := range r.db.wishes {
		if w.StudentID == studentID && w.PrizeID == prizeID {
			row := *w
			return &row, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithMessage("no wish for prize %d can be found", prizeID)
}

func (r *wishRepository) ListByStudent(_ context.Context, studentID int32) ([]models.Wish, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return sortedValues(r.db.wishes, func(w *models.Wish) bool { return w.StudentID == studentID }), nil
}

func (r *wishRepository) Delete(_ context.Context, id int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.wishes[id]; !ok {
		return pkgerrors.NotFound("wish", id)
	}
	delete(r.db.wishes, id)
	return nil
}
