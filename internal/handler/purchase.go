package handler

import (
	"net/http"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	student, err := auth.RequireStudent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		PrizeID int32 `json:"prizeId"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	tx, err := h.purchase.PostTransaction(r.Context(), student, req.PrizeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	txID, err := pathID(r, "transactionId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Approved *bool `json:"approved"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	// a missing field must not fall through to a rejection
	if req.Approved == nil {
		h.writeError(w, pkgerrors.InvalidInput("approved is required"))
		return
	}

	tx, err := h.purchase.ApproveTransaction(r.Context(), teacher, txID, *req.Approved)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	student, err := auth.RequireStudent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	txID, err := pathID(r, "transactionId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	tx, err := h.purchase.CancelTransaction(r.Context(), student, txID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) MarkTransactionGiven(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	txID, err := pathID(r, "transactionId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	tx, err := h.purchase.MarkTransactionGiven(r.Context(), teacher, txID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) AdjustStudentBalance(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	studentID, err := pathID(r, "studentId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		KudosBalance int32 `json:"kudosBalance"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	student, err := h.purchase.AdjustStudentBalance(r.Context(), teacher, studentID, req.KudosBalance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *Handler) ToggleTreasureBox(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	classID, err := pathID(r, "classId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	open, err := h.purchase.ToggleTreasureBox(r.Context(), teacher, classID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"treasureBoxOpen": open})
}

func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	student, err := auth.RequireStudent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		PrizeID int32 `json:"prizeId"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	wish, err := h.purchase.AddToWishlist(r.Context(), student, req.PrizeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wish)
}

// CancelOrBuyWish answers with the new transaction on BUY and with an empty
// object on CANCEL.
func (h *Handler) CancelOrBuyWish(w http.ResponseWriter, r *http.Request) {
	student, err := auth.RequireStudent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	wishID, err := pathID(r, "wishId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		PrizeID    int32             `json:"prizeId"`
		ActionType models.WishAction `json:"actionType"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	tx, err := h.purchase.CancelOrBuyWish(r.Context(), student, wishID, req.PrizeID, req.ActionType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tx == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
