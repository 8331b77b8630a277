package stats_api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/stats"
	"ms-cursos/internal/utils"
)

type Handler struct {
	Service *stats.Service
	Logger  *logger.Logger
}

func NewHandler(service *stats.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.Overview)
	r.Get("/stats/cursos/{slug}", h.CourseStats)
	r.Get("/stats/cursos/{slug}/{version}", h.CourseStats)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.Overview(r.Context())
	if err != nil {
		h.Logger.Error("STATS", "Failed to build overview: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to build overview", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("overview", overview))
}

func (h *Handler) CourseStats(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	version := 0
	if raw := chi.URLParam(r, "version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid version", raw))
			return
		}
		version = parsed
	}

	report, err := h.Service.CourseStats(r.Context(), slug, version)
	if errors.Is(err, stats.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", slug))
		return
	}
	if err != nil {
		h.Logger.Error("STATS", "Failed to build course stats: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to build course stats", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("course stats", report))
}
