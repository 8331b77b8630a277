package catalog_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-cursos/internal/catalog"
	"ms-cursos/internal/catalog/db"
	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
	"ms-cursos/internal/utils"
)

// Handler exposes the admin catalog CRUD endpoints.
type Handler struct {
	Service *catalog.Service
	Logger  *logger.Logger
}

func NewHandler(service *catalog.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cursos", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.Post("/", h.CreateCourse)
		r.Get("/{slug}", h.GetCourse)
		r.Put("/{slug}", h.UpdateCourse)
		r.Delete("/{slug}", h.DeleteCourse)
		r.Post("/{slug}/version", h.BumpVersion)

		r.Get("/{slug}/dias", h.ListDays)
		r.Post("/{slug}/dias", h.CreateDay)
		r.Put("/{slug}/dias/{dayId}", h.UpdateDay)
		r.Delete("/{slug}/dias/{dayId}", h.DeleteDay)

		r.Get("/{slug}/docentes", h.ListInstructors)
		r.Post("/{slug}/docentes/{instructorId}", h.AssignInstructor)
		r.Delete("/{slug}/docentes/{instructorId}", h.UnassignInstructor)
	})
	r.Route("/docentes", func(r chi.Router) {
		r.Post("/", h.CreateInstructor)
		r.Put("/{instructorId}", h.UpdateInstructor)
	})
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Service.ListCourses(r.Context())
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to list courses: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list courses", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("courses", courses))
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	course, err := h.Service.GetCourse(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return
	}
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to get course: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get course", err.Error()))
		return
	}

	days, err := h.Service.ListDays(r.Context(), course.CourseID)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to list course days: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list course days", err.Error()))
		return
	}
	instructors, err := h.Service.ListInstructors(r.Context(), course.CourseID)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to list instructors: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list instructors", err.Error()))
		return
	}

	payload := map[string]interface{}{
		"course":      course,
		"days":        days,
		"instructors": instructors,
		"online":      h.Service.IsOnline(course),
		"map_link":    h.Service.MapLink(course),
	}
	if start, ok, err := h.Service.StartDate(r.Context(), course.CourseID); err == nil && ok {
		payload["start_date"] = start
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("course", payload))
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var course models.Course
	if err := json.NewDecoder(r.Body).Decode(&course); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if course.Name == "" || course.Slug == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("name and slug are required", ""))
		return
	}

	created, err := h.Service.CreateCourse(r.Context(), course)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to create course: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to create course", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("course created", created))
}

func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	existing, err := h.Service.GetCourse(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get course", err.Error()))
		return
	}

	var course models.Course
	if err := json.NewDecoder(r.Body).Decode(&course); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	course.CourseID = existing.CourseID

	if err := h.Service.UpdateCourse(r.Context(), course); err != nil {
		h.Logger.Error("CATALOG", "Failed to update course: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to update course", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("course updated", nil))
}

func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	course, err := h.Service.GetCourse(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get course", err.Error()))
		return
	}

	if err := h.Service.DeleteCourse(r.Context(), course.CourseID); err != nil {
		h.Logger.Error("CATALOG", "Failed to delete course: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to delete course", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("course deleted", nil))
}

func (h *Handler) BumpVersion(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	course, err := h.Service.GetCourse(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get course", err.Error()))
		return
	}

	version, err := h.Service.BumpVersion(r.Context(), course.CourseID)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to bump version: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to bump version", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("version bumped", map[string]int{"version": version}))
}

func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	days, err := h.Service.ListDays(r.Context(), course.CourseID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list course days", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("days", days))
}

func (h *Handler) CreateDay(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	var day models.CourseDay
	if err := json.NewDecoder(r.Body).Decode(&day); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	day.CourseID = course.CourseID

	created, err := h.Service.CreateDay(r.Context(), day)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to create course day: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to create course day", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("day created", created))
}

func (h *Handler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	var day models.CourseDay
	if err := json.NewDecoder(r.Body).Decode(&day); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	day.DayID = chi.URLParam(r, "dayId")
	day.CourseID = course.CourseID

	if err := h.Service.UpdateDay(r.Context(), day); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to update course day", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("day updated", nil))
}

func (h *Handler) DeleteDay(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteDay(r.Context(), chi.URLParam(r, "dayId")); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to delete course day", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("day deleted", nil))
}

func (h *Handler) ListInstructors(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	instructors, err := h.Service.ListInstructors(r.Context(), course.CourseID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list instructors", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("instructors", instructors))
}

func (h *Handler) CreateInstructor(w http.ResponseWriter, r *http.Request) {
	var instructor models.Instructor
	if err := json.NewDecoder(r.Body).Decode(&instructor); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if instructor.Name == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("name is required", ""))
		return
	}

	created, err := h.Service.CreateInstructor(r.Context(), instructor)
	if err != nil {
		h.Logger.Error("CATALOG", "Failed to create instructor: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to create instructor", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("instructor created", created))
}

func (h *Handler) UpdateInstructor(w http.ResponseWriter, r *http.Request) {
	var instructor models.Instructor
	if err := json.NewDecoder(r.Body).Decode(&instructor); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	instructor.InstructorID = chi.URLParam(r, "instructorId")

	if err := h.Service.UpdateInstructor(r.Context(), instructor); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("instructor not found", instructor.InstructorID))
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to update instructor", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("instructor updated", nil))
}

func (h *Handler) AssignInstructor(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	if err := h.Service.AssignInstructor(r.Context(), course.CourseID, chi.URLParam(r, "instructorId")); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to assign instructor", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("instructor assigned", nil))
}

func (h *Handler) UnassignInstructor(w http.ResponseWriter, r *http.Request) {
	course, ok := h.resolveCourse(w, r)
	if !ok {
		return
	}
	if err := h.Service.UnassignInstructor(r.Context(), course.CourseID, chi.URLParam(r, "instructorId")); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to unassign instructor", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("instructor unassigned", nil))
}

func (h *Handler) resolveCourse(w http.ResponseWriter, r *http.Request) (*models.Course, bool) {
	slug := chi.URLParam(r, "slug")
	course, err := h.Service.GetCourse(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return nil, false
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get course", err.Error()))
		return nil, false
	}
	return course, true
}
