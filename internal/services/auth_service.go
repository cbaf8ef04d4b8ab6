package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

const authTracer = "auth-service"

// dummyHash is compared against when the username is unknown, so a missing
// account costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("kudos-classroom"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash dummy password: %v", err))
	}
	return hash
})

type AuthService struct {
	store    *repository.Store
	issuer   *auth.TokenIssuer
	sessions SessionStore
	compare  func(hash, password []byte) error
}

func NewAuthService(store *repository.Store, issuer *auth.TokenIssuer, sessions SessionStore) *AuthService {
	return &AuthService{
		store:    store,
		issuer:   issuer,
		sessions: sessions,
		compare:  bcrypt.CompareHashAndPassword,
	}
}

// Login checks the password of username in the table of the claimed role
// and issues an access and a refresh token.
func (s *AuthService) Login(ctx context.Context, username, password string, role models.Role) (*models.LoginResult, error) {
	ctx, span := otel.Tracer(authTracer).Start(ctx, "Login")
	defer span.End()

	var (
		id   models.Identity
		hash string
	)
	switch role {
	case models.RoleTeacher:
		teacher, err := s.store.Teachers.GetByUsername(ctx, username)
		if err != nil {
			_ = s.compare(dummyHash(), []byte(password))
			return nil, fail(span, "Login", credentialsError(err), "username", username)
		}
		id, hash = models.TeacherIdentity{ID: teacher.ID}, teacher.PasswordHash
	case models.RoleStudent:
		student, err := s.store.Students.GetByUsername(ctx, username)
		if err != nil {
			_ = s.compare(dummyHash(), []byte(password))
			return nil, fail(span, "Login", credentialsError(err), "username", username)
		}
		if student.ClassID == nil {
			// checked after the password below so the response does not leak the account
			id, hash = nil, student.PasswordHash
		} else {
			id, hash = models.StudentIdentity{ID: student.ID, ClassID: *student.ClassID}, student.PasswordHash
		}
	default:
		return nil, fail(span, "Login", pkgerrors.InvalidInput("userType must be %q or %q", models.RoleTeacher, models.RoleStudent))
	}

	if err := s.compare([]byte(hash), []byte(password)); err != nil {
		return nil, fail(span, "Login", pkgerrors.ErrInvalidCredentials, "username", username)
	}
	if id == nil {
		return nil, fail(span, "Login", pkgerrors.Forbidden("this student is not assigned to a class"), "username", username)
	}

	result, err := s.issue(ctx, id)
	if err != nil {
		return nil, fail(span, "Login", err, "username", username)
	}
	slog.Info("user logged in", "username", username, "user_type", role, "user_id", id.UserID())
	return result, nil
}

func (s *AuthService) issue(ctx context.Context, id models.Identity) (*models.LoginResult, error) {
	access, err := s.issuer.IssueAccess(id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, jti, err := s.issuer.IssueRefresh(id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	if err := s.sessions.Register(ctx, jti, id, s.issuer.RefreshTTL()); err != nil {
		return nil, err
	}

	result := &models.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserType:     id.Role(),
		UserID:       id.UserID(),
	}
	if student, ok := id.(models.StudentIdentity); ok {
		classID := student.ClassID
		result.ClassID = &classID
	}
	return result, nil
}

// Refresh exchanges a refresh token for a new access token and a rotated
// refresh token. It never fails: any problem yields {error: true}.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) *models.RefreshResult {
	ctx, span := otel.Tracer(authTracer).Start(ctx, "Refresh")
	defer span.End()

	denied := &models.RefreshResult{Error: true}
	if refreshToken == "" {
		return denied
	}
	id, jti, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		slog.Info("refresh token rejected", "error", err)
		return denied
	}
	active, err := s.sessions.Active(ctx, jti, id)
	if err != nil || !active {
		slog.Info("refresh session not active", "user_id", id.UserID(), "error", err)
		return denied
	}
	if err := s.stillValid(ctx, id); err != nil {
		slog.Info("refresh identity no longer valid", "user_id", id.UserID(), "error", err)
		_, _ = s.sessions.Revoke(ctx, jti)
		return denied
	}

	// Revoke is the point of rotation: only the caller that removes the jti
	// gets new tokens.
	revoked, err := s.sessions.Revoke(ctx, jti)
	if err != nil {
		_ = fail(span, "Refresh", err)
		return denied
	}
	if !revoked {
		slog.Warn("refresh session already rotated", "user_id", id.UserID())
		return denied
	}
	result, err := s.issue(ctx, id)
	if err != nil {
		_ = fail(span, "Refresh", err)
		return denied
	}
	slog.Info("tokens refreshed", "user_type", id.Role(), "user_id", id.UserID())
	return &models.RefreshResult{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}
}

// stillValid reports whether the account behind id still exists and, for a
// student, still belongs to the same class.
func (s *AuthService) stillValid(ctx context.Context, id models.Identity) error {
	switch id := id.(type) {
	case models.TeacherIdentity:
		_, err := s.store.Teachers.GetByID(ctx, id.ID)
		return err
	case models.StudentIdentity:
		student, err := s.store.Students.GetByID(ctx, id.ID)
		if err != nil {
			return err
		}
		if student.ClassID == nil || *student.ClassID != id.ClassID {
			return pkgerrors.Forbidden("student %d changed class", id.ID)
		}
		return nil
	}
	return pkgerrors.ErrUnauthenticated
}

// Logout revokes the refresh token if it can be parsed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	_, jti, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return
	}
	if _, err := s.sessions.Revoke(ctx, jti); err != nil {
		slog.Warn("failed to revoke refresh session", "error", err)
		return
	}
	slog.Info("refresh session revoked")
}

func credentialsError(err error) error {
	if pkgerrors.As(err).Kind == pkgerrors.KindNotFound {
		return pkgerrors.ErrInvalidCredentials
	}
	return err
}
