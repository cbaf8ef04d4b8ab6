package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/storage"
	"github.com/honeynil/KudosClassroom/internal/models"
	service "github.com/honeynil/KudosClassroom/internal/services"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

const (
	refreshCookie     = "rtkn"
	refreshCookiePath = "/refresh_token"
)

type Handler struct {
	auth      *service.AuthService
	purchase  *service.PurchaseService
	classroom *service.ClassroomService
	query     *service.QueryService
	uploads   storage.UploadSigner

	cookieSecure bool
	refreshTTL   time.Duration
}

type Services struct {
	Auth      *service.AuthService
	Purchase  *service.PurchaseService
	Classroom *service.ClassroomService
	Query     *service.QueryService
	Uploads   storage.UploadSigner
}

func NewHandler(s Services, cookieSecure bool, refreshTTL time.Duration) *Handler {
	return &Handler{
		auth:         s.Auth,
		purchase:     s.Purchase,
		classroom:    s.Classroom,
		query:        s.Query,
		uploads:      s.Uploads,
		cookieSecure: cookieSecure,
		refreshTTL:   refreshTTL,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeError answers with the status carried by a domain error. Anything else
// is reported as a 500 without leaking its message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := pkgerrors.As(err)
	message := e.Message
	if e.Kind == pkgerrors.KindInternal {
		message = "internal server error"
	}
	writeJSON(w, e.Code, errorResponse{Error: message, Code: e.Code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.InvalidInput("malformed request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	return parseID(name, mux.Vars(r)[name])
}

func parseID(name, raw string) (int32, error) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, pkgerrors.InvalidInput("%s must be an integer", name)
	}
	return int32(id), nil
}

type idsRequest struct {
	IDs []int32 `json:"ids"`
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/refresh_token", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/teachers", h.CreateTeacher).Methods(http.MethodPost)
}

// RegisterProtectedRoutes registers the operations that need an identity.
// Each handler applies the role gate itself.
func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/teacher", h.Teacher).Methods(http.MethodGet)
	r.HandleFunc("/teacher", h.EditTeacher).Methods(http.MethodPut)
	r.HandleFunc("/student", h.Student).Methods(http.MethodGet)

	r.HandleFunc("/classes", h.GetClasses).Methods(http.MethodGet)
	r.HandleFunc("/classes", h.CreateClass).Methods(http.MethodPost)
	r.HandleFunc("/classes", h.EditClasses).Methods(http.MethodPut)
	r.HandleFunc("/classes/{classId}", h.GetClassInfo).Methods(http.MethodGet)
	r.HandleFunc("/classes/{classId}", h.DeleteClass).Methods(http.MethodDelete)
	r.HandleFunc("/classes/{classId}/treasure-box", h.ToggleTreasureBox).Methods(http.MethodPost)
	r.HandleFunc("/classes/{classId}/students", h.CreateStudent).Methods(http.MethodPost)
	r.HandleFunc("/classes/{classId}/prizes", h.CreatePrize).Methods(http.MethodPost)

	r.HandleFunc("/students", h.DeleteStudents).Methods(http.MethodDelete)
	r.HandleFunc("/students/{studentId}", h.EditStudent).Methods(http.MethodPut)
	r.HandleFunc("/students/{studentId}/balance", h.AdjustStudentBalance).Methods(http.MethodPut)

	r.HandleFunc("/prizes", h.GetClassPrizes).Methods(http.MethodGet)
	r.HandleFunc("/prizes", h.DeletePrizes).Methods(http.MethodDelete)
	r.HandleFunc("/prizes/{prizeId}", h.EditPrize).Methods(http.MethodPut)

	r.HandleFunc("/categories", h.CreateCategory).Methods(http.MethodPost)
	r.HandleFunc("/categories", h.EditCategories).Methods(http.MethodPut)
	r.HandleFunc("/categories/{categoryId}", h.DeleteCategory).Methods(http.MethodDelete)

	r.HandleFunc("/transactions", h.PostTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{transactionId}", h.CancelTransaction).Methods(http.MethodDelete)
	r.HandleFunc("/transactions/{transactionId}/approval", h.ApproveTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{transactionId}/given", h.MarkTransactionGiven).Methods(http.MethodPost)

	r.HandleFunc("/wishes", h.AddToWishlist).Methods(http.MethodPost)
	r.HandleFunc("/wishes/{wishId}", h.CancelOrBuyWish).Methods(http.MethodPost)

	r.HandleFunc("/uploads/sign", h.SignUpload).Methods(http.MethodPost)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func refreshToken(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string      `json:"username"`
		Password string      `json:"password"`
		UserType models.Role `json:"userType"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password, req.UserType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setRefreshCookie(w, result.RefreshToken, int(h.refreshTTL.Seconds()))
	writeJSON(w, http.StatusOK, result)
}

// Refresh always answers 200; a refused exchange is {"error": true}.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	result := h.auth.Refresh(r.Context(), refreshToken(r))
	if !result.Error {
		h.setRefreshCookie(w, result.RefreshToken, int(h.refreshTTL.Seconds()))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), refreshToken(r))
	h.setRefreshCookie(w, "", -1)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) SignUpload(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireIdentity(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	signed, err := h.uploads.SignUpload(r.Context(), req.FileName, req.FileType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}
