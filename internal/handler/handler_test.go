package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/kafka"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/redis"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/storage"
	inmemdb "github.com/honeynil/KudosClassroom/internal/repository/inmem"
	service "github.com/honeynil/KudosClassroom/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := inmemdb.NewStore()
	client := redis.NewMemoryClient()
	cache := redis.NewPrizeCache(client, time.Minute)
	issuer := auth.NewTokenIssuer(config.AuthConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})

	h := NewHandler(Services{
		Auth:      service.NewAuthService(store, issuer, redis.NewSessionStore(client)),
		Purchase:  service.NewPurchaseService(store, cache, kafka.NoopPublisher{}, time.Now),
		Classroom: service.NewClassroomService(store, cache),
		Query:     service.NewQueryService(store, cache),
		Uploads:   storage.DisabledSigner{},
	}, true, time.Hour)

	r := mux.NewRouter()
	r.Use(auth.Authenticate(issuer))
	h.RegisterPublicRoutes(r)
	h.RegisterProtectedRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func loginTeacher(t *testing.T, router http.Handler) (string, *http.Cookie) {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/teachers", "", map[string]string{
		"username": "maria", "email": "maria@school.test", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/login", "", map[string]string{
		"username": "maria", "password": "secret", "userType": "teacher",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == refreshCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	return decodeBody[struct {
		AccessToken string `json:"accessToken"`
	}](t, rr).AccessToken, cookie
}

func TestHandler_LoginSetsRefreshCookie(t *testing.T) {
	router := newTestRouter(t)
	token, cookie := loginTeacher(t, router)

	assert.NotEmpty(t, token)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, refreshCookiePath, cookie.Path)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	rr := do(t, router, http.MethodPost, "/login", "", map[string]string{
		"username": "maria", "password": "wrong", "userType": "teacher",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"invalid username or password","code":401}`, rr.Body.String())
}

func TestHandler_Refresh(t *testing.T) {
	router := newTestRouter(t)
	_, cookie := loginTeacher(t, router)

	rr := do(t, router, http.MethodPost, "/refresh_token", "", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[struct {
		Error       bool   `json:"error"`
		AccessToken string `json:"accessToken"`
	}](t, rr)
	assert.False(t, body.Error)
	assert.NotEmpty(t, body.AccessToken)

	rr = do(t, router, http.MethodPost, "/refresh_token", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"error":true,"accessToken":""}`, rr.Body.String())
}

func TestHandler_Gate(t *testing.T) {
	router := newTestRouter(t)
	token, _ := loginTeacher(t, router)

	rr := do(t, router, http.MethodGet, "/teacher", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"not authenticated","code":401}`, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/teacher", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, router, http.MethodPost, "/transactions", token, map[string]int{"prizeId": 1})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"you must be a student to do this action","code":403}`, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/teacher", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_ClassLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token, _ := loginTeacher(t, router)

	rr := do(t, router, http.MethodPost, "/classes", token, map[string]string{"className": "5B"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	class := decodeBody[struct {
		ID int32 `json:"classId"`
	}](t, rr)

	rr = do(t, router, http.MethodPost, "/classes/1/treasure-box", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"treasureBoxOpen":true}`, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/classes/404", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"no class with id 404 can be found","code":404}`, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/classes/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodDelete, "/classes/1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), class.ID)
}

func TestHandler_SignUploadDisabled(t *testing.T) {
	router := newTestRouter(t)
	token, _ := loginTeacher(t, router)

	rr := do(t, router, http.MethodPost, "/uploads/sign", token, map[string]string{"fileName": "a.png", "fileType": "image/png"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"error":"uploads are not configured","code":409}`, rr.Body.String())
}

func TestHandler_WriteErrorHidesInternalErrors(t *testing.T) {
	h := &Handler{}
	rr := httptest.NewRecorder()
	h.writeError(rr, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":500}`, rr.Body.String())
}
