package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

const classroomTracer = "classroom-service"

type TeacherInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	ImageURL  string `json:"imageUrl"`
	Biography string `json:"biography"`
}

type ClassInput struct {
	ID       int32  `json:"classId"`
	Name     string `json:"className"`
	ImageURL string `json:"imageUrl"`
}

type StudentInput struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ImageURL        string `json:"imageUrl"`
	Biography       string `json:"biography"`
	FavoriteSubject string `json:"favoriteSubject"`
}

type PrizeInput struct {
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	KudosCost   int32  `json:"kudosCost"`
	// Quantity defaults to 1 when omitted on create.
	Quantity   *int32 `json:"quantity"`
	CategoryID int32  `json:"categoryId"`
}

type CategoryInput struct {
	ID    int32  `json:"categoryId"`
	Label string `json:"label"`
}

// ClassroomService manages teachers, classes, students, prizes and
// categories. Every method except CreateTeacher acts on behalf of a teacher
// and only on what that teacher owns.
type ClassroomService struct {
	store      *repository.Store
	cache      PrizeCache
	bcryptCost int
}

func NewClassroomService(store *repository.Store, cache PrizeCache) *ClassroomService {
	return &ClassroomService{store: store, cache: cache, bcryptCost: bcrypt.DefaultCost}
}

func (s *ClassroomService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// required takes name, value pairs and rejects the first blank value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return pkgerrors.InvalidInput("%s is required", pairs[i])
		}
	}
	return nil
}

func (s *ClassroomService) CreateTeacher(ctx context.Context, in TeacherInput) (*models.Teacher, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "CreateTeacher")
	defer span.End()

	if err := required("username", in.Username, "email", in.Email, "password", in.Password); err != nil {
		return nil, fail(span, "CreateTeacher", err)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, fail(span, "CreateTeacher", err)
	}

	teacher := &models.Teacher{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		ImageURL:     in.ImageURL,
		Biography:    in.Biography,
	}
	if err := s.store.Teachers.Create(ctx, teacher); err != nil {
		return nil, fail(span, "CreateTeacher", err, "username", in.Username)
	}
	slog.Info("teacher registered", "teacher_id", teacher.ID, "username", teacher.Username)
	return teacher, nil
}

// EditTeacher updates the caller's profile. The username cannot change and
// an empty password keeps the current one.
func (s *ClassroomService) EditTeacher(ctx context.Context, id models.TeacherIdentity, in TeacherInput) (*models.Teacher, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "EditTeacher")
	defer span.End()

	teacher, err := s.store.Teachers.GetByID(ctx, id.ID)
	if err != nil {
		return nil, fail(span, "EditTeacher", err, "teacher_id", id.ID)
	}
	teacher.FirstName = in.FirstName
	teacher.LastName = in.LastName
	teacher.ImageURL = in.ImageURL
	teacher.Biography = in.Biography
	if in.Email != "" {
		teacher.Email = in.Email
	}
	if in.Password != "" {
		if teacher.PasswordHash, err = s.hash(in.Password); err != nil {
			return nil, fail(span, "EditTeacher", err)
		}
	}
	if err := s.store.Teachers.Update(ctx, teacher); err != nil {
		return nil, fail(span, "EditTeacher", err, "teacher_id", id.ID)
	}
	return teacher, nil
}

func (s *ClassroomService) CreateClass(ctx context.Context, id models.TeacherIdentity, in ClassInput) (*models.Class, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "CreateClass")
	defer span.End()

	if err := required("className", in.Name); err != nil {
		return nil, fail(span, "CreateClass", err)
	}
	if _, err := s.store.Teachers.GetByID(ctx, id.ID); err != nil {
		return nil, fail(span, "CreateClass", err, "teacher_id", id.ID)
	}
	class := &models.Class{Name: in.Name, ImageURL: in.ImageURL, TeacherID: id.ID}
	if err := s.store.Classes.Create(ctx, class); err != nil {
		return nil, fail(span, "CreateClass", err, "teacher_id", id.ID)
	}
	return class, nil
}

// EditClasses applies each edit in turn and stops at the first failure;
// earlier edits stay applied.
func (s *ClassroomService) EditClasses(ctx context.Context, id models.TeacherIdentity, edits []ClassInput) ([]models.Class, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "EditClasses")
	defer span.End()

	updated := make([]models.Class, 0, len(edits))
	for _, in := range edits {
		class, err := ownClass(ctx, s.store, id, in.ID)
		if err != nil {
			return updated, fail(span, "EditClasses", err, "class_id", in.ID)
		}
		class.Name = in.Name
		class.ImageURL = in.ImageURL
		if err := s.store.Classes.Update(ctx, class); err != nil {
			return updated, fail(span, "EditClasses", err, "class_id", in.ID)
		}
		updated = append(updated, *class)
	}
	return updated, nil
}

// DeleteClass removes a class and its prizes. Its students stay, without a
// class.
func (s *ClassroomService) DeleteClass(ctx context.Context, id models.TeacherIdentity, classID int32) (*models.Class, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "DeleteClass")
	defer span.End()

	class, err := ownClass(ctx, s.store, id, classID)
	if err != nil {
		return nil, fail(span, "DeleteClass", err, "class_id", classID)
	}
	if err := s.store.Classes.Delete(ctx, classID); err != nil {
		return nil, fail(span, "DeleteClass", err, "class_id", classID)
	}
	s.cache.Invalidate(ctx, classID)
	return class, nil
}

func (s *ClassroomService) CreateStudent(ctx context.Context, id models.TeacherIdentity, classID int32, in StudentInput) (*models.Student, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "CreateStudent")
	defer span.End()

	if err := required("username", in.Username, "password", in.Password); err != nil {
		return nil, fail(span, "CreateStudent", err)
	}
	if _, err := ownClass(ctx, s.store, id, classID); err != nil {
		return nil, fail(span, "CreateStudent", err, "class_id", classID)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, fail(span, "CreateStudent", err)
	}

	student := &models.Student{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Username:        in.Username,
		PasswordHash:    hash,
		ImageURL:        in.ImageURL,
		Biography:       in.Biography,
		FavoriteSubject: in.FavoriteSubject,
		ClassID:         &classID,
	}
	if err := s.store.Students.Create(ctx, student); err != nil {
		return nil, fail(span, "CreateStudent", err, "username", in.Username)
	}
	slog.Info("student created", "student_id", student.ID, "class_id", classID)
	return student, nil
}

// EditStudent updates a student's profile. The balance is changed through
// AdjustStudentBalance only. An empty password keeps the current one.
func (s *ClassroomService) EditStudent(ctx context.Context, id models.TeacherIdentity, studentID int32, in StudentInput) (*models.Student, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "EditStudent")
	defer span.End()

	student, err := ownStudent(ctx, s.store, id, studentID)
	if err != nil {
		return nil, fail(span, "EditStudent", err, "student_id", studentID)
	}
	student.FirstName = in.FirstName
	student.LastName = in.LastName
	student.ImageURL = in.ImageURL
	student.Biography = in.Biography
	student.FavoriteSubject = in.FavoriteSubject
	if in.Username != "" {
		student.Username = in.Username
	}
	if in.Password != "" {
		if student.PasswordHash, err = s.hash(in.Password); err != nil {
			return nil, fail(span, "EditStudent", err)
		}
	}
	if err := s.store.Students.Update(ctx, student); err != nil {
		return nil, fail(span, "EditStudent", err, "student_id", studentID)
	}
	return student, nil
}

// DeleteStudents deletes students one by one and stops at the first failure.
// It returns the ids deleted so far.
func (s *ClassroomService) DeleteStudents(ctx context.Context, id models.TeacherIdentity, studentIDs []int32) ([]int32, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "DeleteStudents")
	defer span.End()

	deleted := make([]int32, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if _, err := ownStudent(ctx, s.store, id, studentID); err != nil {
			return deleted, fail(span, "DeleteStudents", err, "student_id", studentID)
		}
		if err := s.store.Students.Delete(ctx, studentID); err != nil {
			return deleted, fail(span, "DeleteStudents", err, "student_id", studentID)
		}
		deleted = append(deleted, studentID)
	}
	return deleted, nil
}

func (s *ClassroomService) ownCategory(ctx context.Context, id models.TeacherIdentity, categoryID int32) (*models.Category, error) {
	category, err := s.store.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.TeacherID != id.ID {
		return nil, pkgerrors.Forbidden("you do not have access to category %d", categoryID)
	}
	return category, nil
}

func validatePrize(in PrizeInput) error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if in.KudosCost < 0 {
		return pkgerrors.InvalidInput("kudosCost cannot be negative")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return pkgerrors.InvalidInput("quantity cannot be negative")
	}
	return nil
}

func (s *ClassroomService) CreatePrize(ctx context.Context, id models.TeacherIdentity, classID int32, in PrizeInput) (*models.Prize, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "CreatePrize")
	defer span.End()

	if err := validatePrize(in); err != nil {
		return nil, fail(span, "CreatePrize", err)
	}
	if _, err := ownClass(ctx, s.store, id, classID); err != nil {
		return nil, fail(span, "CreatePrize", err, "class_id", classID)
	}
	if _, err := s.ownCategory(ctx, id, in.CategoryID); err != nil {
		return nil, fail(span, "CreatePrize", err, "category_id", in.CategoryID)
	}

	prize := &models.Prize{
		Name:        in.Name,
		ImageURL:    in.ImageURL,
		Description: in.Description,
		KudosCost:   in.KudosCost,
		Quantity:    1,
		CategoryID:  in.CategoryID,
		ClassID:     classID,
	}
	if in.Quantity != nil {
		prize.Quantity = *in.Quantity
	}
	if err := s.store.Prizes.Create(ctx, prize); err != nil {
		return nil, fail(span, "CreatePrize", err, "class_id", classID)
	}
	s.cache.Invalidate(ctx, classID)
	return prize, nil
}

func (s *ClassroomService) ownPrize(ctx context.Context, id models.TeacherIdentity, prizeID int32) (*models.Prize, error) {
	prize, err := s.store.Prizes.GetByID(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	if _, err := ownClass(ctx, s.store, id, prize.ClassID); err != nil {
		if pkgerrors.As(err).Kind == pkgerrors.KindForbidden {
			return nil, pkgerrors.Forbidden("you do not have access to prize %d", prizeID)
		}
		return nil, err
	}
	return prize, nil
}

// EditPrize updates a prize. Transactions keep the snapshot taken when they
// were requested.
func (s *ClassroomService) EditPrize(ctx context.Context, id models.TeacherIdentity, prizeID int32, in PrizeInput) (*models.Prize, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "EditPrize")
	defer span.End()

	if err := validatePrize(in); err != nil {
		return nil, fail(span, "EditPrize", err)
	}
	prize, err := s.ownPrize(ctx, id, prizeID)
	if err != nil {
		return nil, fail(span, "EditPrize", err, "prize_id", prizeID)
	}
	if in.CategoryID != 0 && in.CategoryID != prize.CategoryID {
		if _, err := s.ownCategory(ctx, id, in.CategoryID); err != nil {
			return nil, fail(span, "EditPrize", err, "category_id", in.CategoryID)
		}
		prize.CategoryID = in.CategoryID
	}
	prize.Name = in.Name
	prize.ImageURL = in.ImageURL
	prize.Description = in.Description
	prize.KudosCost = in.KudosCost
	if in.Quantity != nil {
		prize.Quantity = *in.Quantity
	}
	if err := s.store.Prizes.Update(ctx, prize); err != nil {
		return nil, fail(span, "EditPrize", err, "prize_id", prizeID)
	}
	s.cache.Invalidate(ctx, prize.ClassID)
	return prize, nil
}

// DeletePrizes deletes prizes one by one and stops at the first failure.
func (s *ClassroomService) DeletePrizes(ctx context.Context, id models.TeacherIdentity, prizeIDs []int32) ([]int32, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "DeletePrizes")
	defer span.End()

	deleted := make([]int32, 0, len(prizeIDs))
	for _, prizeID := range prizeIDs {
		prize, err := s.ownPrize(ctx, id, prizeID)
		if err != nil {
			return deleted, fail(span, "DeletePrizes", err, "prize_id", prizeID)
		}
		if err := s.store.Prizes.Delete(ctx, prizeID); err != nil {
			return deleted, fail(span, "DeletePrizes", err, "prize_id", prizeID)
		}
		s.cache.Invalidate(ctx, prize.ClassID)
		deleted = append(deleted, prizeID)
	}
	return deleted, nil
}

func (s *ClassroomService) CreateCategory(ctx context.Context, id models.TeacherIdentity, label string) (*models.Category, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "CreateCategory")
	defer span.End()

	if err := required("label", label); err != nil {
		return nil, fail(span, "CreateCategory", err)
	}
	category := &models.Category{Label: label, TeacherID: id.ID}
	if err := s.store.Categories.Create(ctx, category); err != nil {
		return nil, fail(span, "CreateCategory", err, "teacher_id", id.ID)
	}
	return category, nil
}

// EditCategories relabels categories in turn and stops at the first failure.
func (s *ClassroomService) EditCategories(ctx context.Context, id models.TeacherIdentity, edits []CategoryInput) ([]models.Category, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "EditCategories")
	defer span.End()

	updated := make([]models.Category, 0, len(edits))
	for _, in := range edits {
		category, err := s.ownCategory(ctx, id, in.ID)
		if err != nil {
			return updated, fail(span, "EditCategories", err, "category_id", in.ID)
		}
		category.Label = in.Label
		if err := s.store.Categories.Update(ctx, category); err != nil {
			return updated, fail(span, "EditCategories", err, "category_id", in.ID)
		}
		updated = append(updated, *category)
	}
	return updated, nil
}

// DeleteCategory moves the category's prizes to replaceID and deletes it.
func (s *ClassroomService) DeleteCategory(ctx context.Context, id models.TeacherIdentity, categoryID, replaceID int32) (*models.Category, error) {
	ctx, span := otel.Tracer(classroomTracer).Start(ctx, "DeleteCategory")
	defer span.End()

	if categoryID == replaceID {
		return nil, fail(span, "DeleteCategory", pkgerrors.InvalidInput("a category cannot replace itself"))
	}
	category, err := s.ownCategory(ctx, id, categoryID)
	if err != nil {
		return nil, fail(span, "DeleteCategory", err, "category_id", categoryID)
	}
	if _, err := s.ownCategory(ctx, id, replaceID); err != nil {
		return nil, fail(span, "DeleteCategory", err, "replace_id", replaceID)
	}
	if err := s.store.Categories.Delete(ctx, categoryID, replaceID); err != nil {
		return nil, fail(span, "DeleteCategory", err, "category_id", categoryID)
	}

	classes, err := s.store.Classes.ListByTeacher(ctx, id.ID)
	if err == nil {
		for _, c := range classes {
			s.cache.Invalidate(ctx, c.ID)
		}
	}
	return category, nil
}
