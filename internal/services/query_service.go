package service

import (
	"context"

	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel"
)

const queryTracer = "query-service"

// QueryService assembles the read views of teachers, students and classes.
type QueryService struct {
	store *repository.Store
	cache PrizeCache
}

func NewQueryService(store *repository.Store, cache PrizeCache) *QueryService {
	return &QueryService{store: store, cache: cache}
}

func (s *QueryService) Teacher(ctx context.Context, id models.TeacherIdentity) (*models.TeacherView, error) {
	ctx, span := otel.Tracer(queryTracer).Start(ctx, "Teacher")
	defer span.End()

	teacher, err := s.store.Teachers.GetByID(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "Teacher", err, "teacher_id", id.ID)
	}
	categories, err := s.store.Categories.ListByTeacher(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "Teacher", err, "teacher_id", id.ID)
	}
	classes, err := s.store.Classes.ListByTeacher(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "Teacher", err, "teacher_id", id.ID)
	}

	view := &models.TeacherView{
		Teacher:    *teacher,
		Categories: categories,
		Classes:    make([]models.ClassView, 0, len(classes)),
	}
	for i := range classes {
		classView, err := s.classView(ctx, &classes[i])
		if err != nil {
			return nil, fail(span, "Teacher", err, "class_id", classes[i].ID)
		}
		view.Classes = append(view.Classes, *classView)
	}
	return view, nil
}

func (s *QueryService) classView(ctx context.Context, class *models.Class) (*models.ClassView, error) {
	students, err := s.store.Students.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	prizes, err := s.prizes(ctx, class.ID)
	if err != nil {
		return nil, err
	}

	view := &models.ClassView{
		Class:    *class,
		Students: make([]models.StudentRecord, 0, len(students)),
		Prizes:   prizes,
	}
	for _, student := range students {
		txs, err := s.store.Transactions.ListByStudent(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		view.Students = append(view.Students, models.StudentRecord{Student: student, Transactions: txs})
	}
	return view, nil
}

// prizes reads the catalogue of a class through the cache.
func (s *QueryService) prizes(ctx context.Context, classID int32) ([]models.Prize, error) {
	if prizes, ok := s.cache.Get(ctx, classID); ok {
		return prizes, nil
	}
	prizes, err := s.store.Prizes.ListByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, classID, prizes)
	return prizes, nil
}

// Student returns the caller's profile with class, transactions and wish
// list. Wishes carry the live prize, not a snapshot.
func (s *QueryService) Student(ctx context.Context, id models.StudentIdentity) (*models.StudentView, error) {
	ctx, span := otel.Tracer(queryTracer).Start(ctx, "Student")
	defer span.End()

	student, err := s.store.Students.GetByID(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "Student", err, "student_id", id.ID)
	}
	view := &models.StudentView{Student: *student}
	if student.ClassID != nil {
		if view.Class, err = s.store.Classes.GetByID(ctx, *student.ClassID); err != nil {
			return nil, fail(span, "Student", err, "student_id", id.ID)
		}
	}
	if view.Transactions, err = s.store.Transactions.ListByStudent(ctx, id.ID); err != nil {
		return nil, fail(span, "Student", err, "student_id", id.ID)
	}

	wishes, err := s.store.Wishes.ListByStudent(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "Student", err, "student_id", id.ID)
	}
	view.WishList = make([]models.WishView, 0, len(wishes))
	for _, wish := range wishes {
		prize, err := s.store.Prizes.GetByID(ctx, wish.PrizeID)
		if err != nil {
			return nil, fail(span, "Student", err, "wish_id", wish.ID)
		}
		view.WishList = append(view.WishList, models.WishView{
			Wish:           wish,
			Prize:          prize,
			PrizeAvailable: prize.Available(),
		})
	}
	return view, nil
}

// classFor resolves the class an identity may read: a teacher's own class or
// the student's class.
func (s *QueryService) classFor(ctx context.Context, id models.Identity, classID int32) (*models.Class, error) {
	switch id := id.(type) {
	case models.TeacherIdentity:
		return ownClass(ctx, s.store, id, classID)
	case models.StudentIdentity:
		if classID != id.ClassID {
			return nil, pkgerrors.Forbidden("you do not have access to class %d", classID)
		}
		return s.store.Classes.GetByID(ctx, classID)
	}
	return nil, pkgerrors.ErrUnauthenticated
}

func (s *QueryService) GetClassInfo(ctx context.Context, id models.Identity, classID int32) (*models.ClassView, error) {
	ctx, span := otel.Tracer(queryTracer).Start(ctx, "GetClassInfo")
	defer span.End()

	class, err := s.classFor(ctx, id, classID)
	if err != nil {
		return nil, fail(span, "GetClassInfo", err, "class_id", classID)
	}
	view, err := s.classView(ctx, class)
	if err != nil {
		return nil, fail(span, "GetClassInfo", err, "class_id", classID)
	}
	return view, nil
}

func (s *QueryService) GetClasses(ctx context.Context, id models.TeacherIdentity) ([]models.Class, error) {
	ctx, span := otel.Tracer(queryTracer).Start(ctx, "GetClasses")
	defer span.End()

	classes, err := s.store.Classes.ListByTeacher(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "GetClasses", err, "teacher_id", id.ID)
	}
	return classes, nil
}

// GetClassPrizes lists the prizes of classID for a teacher, or of the
// student's own class (classID is ignored for students).
func (s *QueryService) GetClassPrizes(ctx context.Context, id models.Identity, classID int32) ([]models.Prize, error) {
	ctx, span := otel.Tracer(queryTracer).Start(ctx, "GetClassPrizes")
	defer span.End()

	if student, ok := id.(models.StudentIdentity); ok {
		classID = student.ClassID
	}
	class, err := s.classFor(ctx, id, classID)
	if err != nil {
		return nil, fail(span, "GetClassPrizes", err, "class_id", classID)
	}
	prizes, err := s.prizes(ctx, class.ID)
	if err != nil {
		return nil, fail(span, "GetClassPrizes", err, "class_id", classID)
	}
	return prizes, nil
}
