package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/handler"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/kafka"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/redis"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/storage"
	inmemdb "github.com/honeynil/KudosClassroom/internal/repository/inmem"
	service "github.com/honeynil/KudosClassroom/internal/services"
	"github.com/stretchr/testify/assert"
)

func newRouter(t *testing.T, burst int) http.Handler {
	t.Helper()
	cfg := &config.Config{
		CORSOrigin: "*",
		Auth: config.AuthConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
		},
		Limits: config.LimitsConfig{LoginPerSecond: 1, LoginBurst: burst},
	}
	store := inmemdb.NewStore()
	client := redis.NewMemoryClient()
	cache := redis.NewPrizeCache(client, time.Minute)
	issuer := auth.NewTokenIssuer(cfg.Auth)

	h := handler.NewHandler(handler.Services{
		Auth:      service.NewAuthService(store, issuer, redis.NewSessionStore(client)),
		Purchase:  service.NewPurchaseService(store, cache, kafka.NoopPublisher{}, time.Now),
		Classroom: service.NewClassroomService(store, cache),
		Query:     service.NewQueryService(store, cache),
		Uploads:   storage.DisabledSigner{},
	}, false, time.Hour)
	return SetupRouter(h, issuer, cfg)
}

func TestRouter_Preflight(t *testing.T) {
	router := newRouter(t, 5)

	req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	router := newRouter(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"x","password":"y","userType":"teacher"}`))
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{}`))
	req.RemoteAddr = "10.0.0.2:5000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.NotEqual(t, http.StatusTooManyRequests, rr.Code, "limits are per client")
}

func TestRouter_OtherRoutesAreNotLimited(t *testing.T) {
	router := newRouter(t, 1)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(t, 5)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/teacher", nil))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{endpoint="/teacher",method="GET",status="401"}`)
}
