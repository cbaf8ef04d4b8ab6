package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/kafka"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SessionStore tracks refresh tokens that may still be exchanged.
type SessionStore interface {
	Register(ctx context.Context, jti string, id models.Identity, ttl time.Duration) error
	Active(ctx context.Context, jti string, id models.Identity) (bool, error)
	Revoke(ctx context.Context, jti string) (bool, error)
}

// PrizeCache caches the prize catalogue of a class.
type PrizeCache interface {
	Get(ctx context.Context, classID int32) ([]models.Prize, bool)
	Set(ctx context.Context, classID int32, prizes []models.Prize)
	Invalidate(ctx context.Context, classID int32)
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

// fail records err on span and returns it unchanged. Domain rule violations
// are logged as warnings, everything else as errors.
func fail(span trace.Span, method string, err error, args ...any) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	args = append([]any{"method", method, "error", err}, args...)
	if pkgerrors.As(err).Kind == pkgerrors.KindInternal {
		slog.Error("operation failed", args...)
	} else {
		slog.Warn("operation rejected", args...)
	}
	return err
}

// publisher wraps an EventPublisher with best-effort semantics: a broker
// failure is logged and never fails the operation that caused the event.
type publisher struct {
	events kafka.EventPublisher
	now    Clock
}

func (p publisher) publish(ctx context.Context, event models.PurchaseEvent) {
	event.ID = uuid.NewString()
	event.CreatedAt = p.now().UTC()
	observability.PurchaseEvents.WithLabelValues(string(event.Type)).Inc()
	if err := p.events.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish purchase event", "event", event.Type, "student_id", event.StudentID, "error", err)
	}
}

// ownClass loads a class and checks that teacher owns it.
func ownClass(ctx context.Context, store *repository.Store, teacher models.TeacherIdentity, classID int32) (*models.Class, error) {
	class, err := store.Classes.GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != teacher.ID {
		return nil, pkgerrors.Forbidden("you do not have access to class %d", classID)
	}
	return class, nil
}

// ownStudent loads a student and checks that teacher owns the student's class.
func ownStudent(ctx context.Context, store *repository.Store, teacher models.TeacherIdentity, studentID int32) (*models.Student, error) {
	student, err := store.Students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.ClassID == nil {
		return nil, pkgerrors.Forbidden("you do not have access to student %d", studentID)
	}
	if _, err := ownClass(ctx, store, teacher, *student.ClassID); err != nil {
		if pkgerrors.As(err).Kind == pkgerrors.KindForbidden {
			return nil, pkgerrors.Forbidden("you do not have access to student %d", studentID)
		}
		return nil, err
	}
	return student, nil
}
