package handler

import (
	"net/http"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	service "github.com/honeynil/KudosClassroom/internal/services"
)

func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req service.TeacherInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	teacher, err := h.classroom.CreateTeacher(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, teacher)
}

func (h *Handler) Teacher(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.query.Teacher(r.Context(), teacher)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) EditTeacher(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req service.TeacherInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.classroom.EditTeacher(r.Context(), teacher, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Student(w http.ResponseWriter, r *http.Request) {
	student, err := auth.RequireStudent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.query.Student(r.Context(), student)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetClasses(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	classes, err := h.query.GetClasses(r.Context(), teacher)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req service.ClassInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	class, err := h.classroom.CreateClass(r.Context(), teacher, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, class)
}

func (h *Handler) EditClasses(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req []service.ClassInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	classes, err := h.classroom.EditClasses(r.Context(), teacher, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

// GetClassInfo is open to the owning teacher and to the class's students.
func (h *Handler) GetClassInfo(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	classID, err := pathID(r, "classId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	view, err := h.query.GetClassInfo(r.Context(), id, classID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
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
	class, err := h.classroom.DeleteClass(r.Context(), teacher, classID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
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
	var req service.StudentInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	student, err := h.classroom.CreateStudent(r.Context(), teacher, classID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *Handler) EditStudent(w http.ResponseWriter, r *http.Request) {
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
	var req service.StudentInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	student, err := h.classroom.EditStudent(r.Context(), teacher, studentID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *Handler) DeleteStudents(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req idsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	deleted, err := h.classroom.DeleteStudents(r.Context(), teacher, req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsRequest{IDs: deleted})
}

func (h *Handler) GetClassPrizes(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var classID int32
	if raw := r.URL.Query().Get("classId"); raw != "" {
		if classID, err = parseID("classId", raw); err != nil {
			h.writeError(w, err)
			return
		}
	}
	prizes, err := h.query.GetClassPrizes(r.Context(), id, classID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prizes)
}

func (h *Handler) CreatePrize(w http.ResponseWriter, r *http.Request) {
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
	var req service.PrizeInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	prize, err := h.classroom.CreatePrize(r.Context(), teacher, classID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, prize)
}

func (h *Handler) EditPrize(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	prizeID, err := pathID(r, "prizeId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req service.PrizeInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	prize, err := h.classroom.EditPrize(r.Context(), teacher, prizeID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prize)
}

func (h *Handler) DeletePrizes(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req idsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	deleted, err := h.classroom.DeletePrizes(r.Context(), teacher, req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsRequest{IDs: deleted})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req service.CategoryInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	category, err := h.classroom.CreateCategory(r.Context(), teacher, req.Label)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) EditCategories(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req []service.CategoryInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	categories, err := h.classroom.EditCategories(r.Context(), teacher, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	teacher, err := auth.RequireTeacher(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	categoryID, err := pathID(r, "categoryId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	replaceID, err := parseID("replaceId", r.URL.Query().Get("replaceId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	category, err := h.classroom.DeleteCategory(r.Context(), teacher, categoryID, replaceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}
