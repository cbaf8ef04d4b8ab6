package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/redis"
	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	inmemdb "github.com/honeynil/KudosClassroom/internal/repository/inmem"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PurchaseEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *repository.Store
	events    *recordingPublisher
	classroom *ClassroomService
	purchase  *PurchaseService
	query     *QueryService
	auth      *AuthService

	teacher  models.TeacherIdentity
	student  models.StudentIdentity
	class    *models.Class
	category *models.Category
	prize    *models.Prize
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newFixture builds a teacher owning one open class with one student holding
// balance kudos and one prize of the given cost and quantity.
func newFixture(t *testing.T, balance, cost, quantity int32) *fixture {
	t.Helper()
	ctx := context.Background()

	store := inmemdb.NewStore()
	client := redis.NewMemoryClient()
	cache := redis.NewPrizeCache(client, time.Minute)
	events := &recordingPublisher{}
	issuer := auth.NewTokenIssuer(config.AuthConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})

	f := &fixture{
		store:     store,
		events:    events,
		classroom: NewClassroomService(store, cache),
		purchase:  NewPurchaseService(store, cache, events, func() time.Time { return fixedNow }),
		query:     NewQueryService(store, cache),
		auth:      NewAuthService(store, issuer, redis.NewSessionStore(client)),
	}
	f.classroom.bcryptCost = bcrypt.MinCost

	teacher, err := f.classroom.CreateTeacher(ctx, TeacherInput{
		FirstName: "Maria", Username: "maria", Email: "maria@school.test", Password: "secret",
	})
	require.NoError(t, err)
	f.teacher = models.TeacherIdentity{ID: teacher.ID}

	f.category, err = f.classroom.CreateCategory(ctx, f.teacher, "Stationery")
	require.NoError(t, err)
	f.class, err = f.classroom.CreateClass(ctx, f.teacher, ClassInput{Name: "5B"})
	require.NoError(t, err)
	open, err := f.purchase.ToggleTreasureBox(ctx, f.teacher, f.class.ID)
	require.NoError(t, err)
	require.True(t, open)
	f.class.TreasureBoxOpen = true

	student, err := f.classroom.CreateStudent(ctx, f.teacher, f.class.ID, StudentInput{
		FirstName: "Ann", Username: "ann", Password: "pw",
	})
	require.NoError(t, err)
	require.NoError(t, store.Students.SetBalance(ctx, student.ID, balance))
	f.student = models.StudentIdentity{ID: student.ID, ClassID: f.class.ID}

	f.prize, err = f.classroom.CreatePrize(ctx, f.teacher, f.class.ID, PrizeInput{
		Name: "Pencil", KudosCost: cost, Quantity: &quantity, CategoryID: f.category.ID,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T) int32 {
	t.Helper()
	s, err := f.store.Students.GetByID(context.Background(), f.student.ID)
	require.NoError(t, err)
	return s.KudosBalance
}

func (f *fixture) quantity(t *testing.T) int32 {
	t.Helper()
	p, err := f.store.Prizes.GetByID(context.Background(), f.prize.ID)
	require.NoError(t, err)
	return p.Quantity
}
