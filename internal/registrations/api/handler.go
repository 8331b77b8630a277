package registrations_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
	"ms-cursos/internal/registrations"
	"ms-cursos/internal/registrations/db"
	"ms-cursos/internal/utils"
)

type Handler struct {
	Service *registrations.Service
	Logger  *logger.Logger
}

func NewHandler(service *registrations.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/registros", func(r chi.Router) {
		r.Post("/", h.CreateRegistration)
		r.Get("/{registrationId}", h.GetRegistration)
		r.Delete("/{registrationId}", h.DeleteRegistration)
	})
}

func (h *Handler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	reg, err := h.Service.CreateRegistration(r.Context(), req)
	switch {
	case errors.Is(err, registrations.ErrInvalidRequest):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("payment_id and email are required", ""))
		return
	case errors.Is(err, db.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("payment not found", req.PaymentID))
		return
	case err != nil:
		h.Logger.Error("REGISTRATION", "Failed to create registration: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to create registration", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("registration created", reg))
}

func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "registrationId")
	reg, err := h.Service.GetRegistration(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("registration not found", id))
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get registration", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("registration", reg))
}

func (h *Handler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "registrationId")
	err := h.Service.DeleteRegistration(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("registration not found", id))
		return
	}
	if err != nil {
		h.Logger.Error("REGISTRATION", "Failed to delete registration: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to delete registration", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("registration deleted", nil))
}
