package repository

import (
	"context"
	"time"

	"github.com/honeynil/KudosClassroom/internal/models"
)

type TeacherRepository interface {
	Create(ctx context.Context, teacher *models.Teacher) error
	GetByID(ctx context.Context, id int32) (*models.Teacher, error)
	GetByUsername(ctx context.Context, username string) (*models.Teacher, error)
	Update(ctx context.Context, teacher *models.Teacher) error
}

type ClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
	GetByID(ctx context.Context, id int32) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherID int32) ([]models.Class, error)
	Update(ctx context.Context, class *models.Class) error
	// Delete removes the class and its prizes. Students are kept with no class.
	Delete(ctx context.Context, id int32) error
	ToggleTreasureBox(ctx context.Context, id int32) (bool, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id int32) (*models.Student, error)
	GetByUsername(ctx context.Context, username string) (*models.Student, error)
	ListByClass(ctx context.Context, classID int32) ([]models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int32) error
	SetBalance(ctx context.Context, id, balance int32) error
}

type PrizeRepository interface {
	Create(ctx context.Context, prize *models.Prize) error
	GetByID(ctx context.Context, id int32) (*models.Prize, error)
	ListByClass(ctx context.Context, classID int32) ([]models.Prize, error)
	Update(ctx context.Context, prize *models.Prize) error
	Delete(ctx context.Context, id int32) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int32) (*models.Category, error)
	ListByTeacher(ctx context.Context, teacherID int32) ([]models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	// Delete moves every prize of the category to replaceID, then deletes it.
	Delete(ctx context.Context, id, replaceID int32) error
}

// TransactionRepository owns the multi-row writes of the purchase protocol.
// Purchase and Refund are atomic.
type TransactionRepository interface {
	// Purchase debits the student by the prize cost, takes one unit of the
	// prize, stores tx with a snapshot of the prize and, when wishID is not
	// nil, deletes that wish. It fails with ErrPrizeUnavailable or
	// ErrInsufficientFunds and then changes nothing.
	Purchase(ctx context.Context, tx *models.Transaction, wishID *int32) error
	// Refund credits tx.PrizeCost to the student, returns one unit to the
	// prize if it still exists and deletes tx. It fails with
	// ErrTransactionAlreadyApproved once tx has been approved.
	Refund(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id int32) (*models.Transaction, error)
	ListByStudent(ctx context.Context, studentID int32) ([]models.Transaction, error)
	Approve(ctx context.Context, id int32) error
	MarkGiven(ctx context.Context, id int32, at time.Time) error
}

type WishRepository interface {
	Create(ctx context.Context, wish *models.Wish) error
	GetByID(ctx context.Context, id int32) (*models.Wish, error)
	GetByStudentAndPrize(ctx context.Context, studentID, prizeID int32) (*models.Wish, error)
	ListByStudent(ctx context.Context, studentID int32) ([]models.Wish, error)
	Delete(ctx context.Context, id int32) error
}

// Store groups the repositories a backend provides.
type Store struct {
	Teachers     TeacherRepository
	Classes      ClassRepository
	Students     StudentRepository
	Prizes       PrizeRepository
	Categories   CategoryRepository
	Transactions TransactionRepository
	Wishes       WishRepository
}
