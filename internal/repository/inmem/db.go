// Package inmemdb keeps every table in process memory behind a single lock.
// It backs the development STORAGE=memory mode and the service tests.
package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/honeynil/KudosClassroom/internal/models"
	repo "github.com/honeynil/KudosClassroom/internal/repository"
)

// DB holds all tables. Multi-table operations take the write lock once, which
// gives them the same all-or-nothing behaviour as a SQL transaction.
type DB struct {
	mutex sync.RWMutex
	pk    map[string]int32
	now   func() time.Time

	teachers     map[int32]*models.Teacher
	classes      map[int32]*models.Class
	students     map[int32]*models.Student
	prizes       map[int32]*models.Prize
	categories   map[int32]*models.Category
	transactions map[int32]*models.Transaction
	wishes       map[int32]*models.Wish
}

func NewDB() *DB {
	return &DB{
		pk:           make(map[string]int32),
		now:          time.Now,
		teachers:     make(map[int32]*models.Teacher),
		classes:      make(map[int32]*models.Class),
		students:     make(map[int32]*models.Student),
		prizes:       make(map[int32]*models.Prize),
		categories:   make(map[int32]*models.Category),
		transactions: make(map[int32]*models.Transaction),
		wishes:       make(map[int32]*models.Wish),
	}
}

// NewStore returns a Store whose repositories share one fresh DB.
func NewStore() *repo.Store {
	db := NewDB()
	return &repo.Store{
		Teachers:     NewTeacherRepository(db),
		Classes:      NewClassRepository(db),
		Students:     NewStudentRepository(db),
		Prizes:       NewPrizeRepository(db),
		Categories:   NewCategoryRepository(db),
		Transactions: NewTransactionRepository(db),
		Wishes:       NewWishRepository(db),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int32 {
	db.pk[table]++
	return db.pk[table]
}

// deletePrize must be called with the write lock held.
func (db *DB) deletePrize(id int32) {
	delete(db.prizes, id)
	for wid, w := range db.wishes {
		if w.PrizeID == id {
			delete(db.wishes, wid)
		}
	}
}

// deleteStudent must be called with the write lock held.
func (db *DB) deleteStudent(id int32) {
	delete(db.students, id)
	for tid, tx := range db.transactions {
		if tx.StudentID == id {
			delete(db.transactions, tid)
		}
	}
	for wid, w := range db.wishes {
		if w.StudentID == id {
			delete(db.wishes, wid)
		}
	}
}

func sortedValues[T any](table map[int32]*T, keep func(*T) bool) []T {
	ids := make([]int32, 0, len(table))
	for id, v := range table {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, *table[id])
	}
	return out
}
