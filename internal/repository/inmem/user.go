package inmemdb

import (
	"context"
	"sort"

	"github.com/honeynil/KudosClassroom/internal/models"
	repo "github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

type teacherRepository struct {
	db *DB
}

func NewTeacherRepository(db *DB) repo.TeacherRepository {
	return &teacherRepository{db: db}
}

func (r *teacherRepository) checkUniqueness(t *models.Teacher) error {
	for _, other := range r.db.teachers {
		if other.ID == t.ID {
			continue
		}
		if other.Username == t.Username {
			return pkgerrors.ErrUsernameExists
		}
		if other.Email == t.Email {
			return pkgerrors.ErrEmailExists
		}
	}
	return nil
}

func (r *teacherRepository) Create(_ context.Context, t *models.Teacher) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if err := r.checkUniqueness(t); err != nil {
		return err
	}
	t.ID = r.db.nextID("teachers")
	t.CreatedAt = r.db.now()
	row := *t
	r.db.teachers[t.ID] = &row
	return nil
}

func (r *teacherRepository) GetByID(_ context.Context, id int32) (*models.Teacher, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if t, ok := r.db.teachers[id]; ok {
		row := *t
		return &row, nil
	}
	return nil, pkgerrors.NotFound("teacher", id)
}

func (r *teacherRepository) GetByUsername(_ context.Context, username string) (*models.Teacher, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, t := range r.db.teachers {
		if t.Username == username {
			row := *t
			return &row, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithMessage("no teacher with username %q can be found", username)
}

func (r *teacherRepository) Update(_ context.Context, t *models.Teacher) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	orig, ok := r.db.teachers[t.ID]
	if !ok {
		return pkgerrors.NotFound("teacher", t.ID)
	}
	if err := r.checkUniqueness(t); err != nil {
		return err
	}
	row := *t
	row.Username = orig.Username
	row.CreatedAt = orig.CreatedAt
	r.db.teachers[t.ID] = &row
	return nil
}

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) repo.StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) usernameTaken(username string, except int32) bool {
	for _, other := range r.db.students {
		if other.ID != except && other.Username == username {
			return true
		}
	}
	return false
}

func (r *studentRepository) Create(_ context.Context, s *models.Student) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if r.usernameTaken(s.Username, 0) {
		return pkgerrors.ErrUsernameExists
	}
	s.ID = r.db.nextID("students")
	s.CreatedAt = r.db.now()
	row := *s
	r.db.students[s.ID] = &row
	return nil
}

func (r *studentRepository) GetByID(_ context.Context, id int32) (*models.Student, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if s, ok := r.db.students[id]; ok {
		row := *s
		return &row, nil
	}
	return nil, pkgerrors.NotFound("student", id)
}

func (r *studentRepository) GetByUsername(_ context.Context, username string) (*models.Student, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, s := range r.db.students {
		if s.Username == username {
			row := *s
			return &row, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithMessage("no student with username %q can be found", username)
}

func (r *studentRepository) ListByClass(_ context.Context, classID int32) ([]models.Student, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	students := sortedValues(r.db.students, func(s *models.Student) bool {
		return s.ClassID != nil && *s.ClassID == classID
	})
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students, nil
}

func (r *studentRepository) Update(_ context.Context, s *models.Student) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	orig, ok := r.db.students[s.ID]
	if !ok {
		return pkgerrors.NotFound("student", s.ID)
	}
	if r.usernameTaken(s.Username, s.ID) {
		return pkgerrors.ErrUsernameExists
	}
	row := *s
	row.KudosBalance = orig.KudosBalance
	row.ClassID = orig.ClassID
	row.CreatedAt = orig.CreatedAt
	r.db.students[s.ID] = &row
	return nil
}

func (r *studentRepository) Delete(_ context.Context, id int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.students[id]; !ok {
		return pkgerrors.NotFound("student", id)
	}
	r.db.deleteStudent(id)
	return nil
}

func (r *studentRepository) SetBalance(_ context.Context, id, balance int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	s, ok := r.db.students[id]
	if !ok {
		return pkgerrors.NotFound("student", id)
	}
	if balance < 0 {
		return pkgerrors.InvalidInput("kudos balance cannot be negative")
	}
	s.KudosBalance = balance
	return nil
}
