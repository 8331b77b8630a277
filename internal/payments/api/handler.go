package payments_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
	"ms-cursos/internal/payments"
	"ms-cursos/internal/payments/db"
	"ms-cursos/internal/utils"
)

type Handler struct {
	Service *payments.Service
	Stripe  payments.StripeConfig
	Logger  *logger.Logger
}

func NewHandler(service *payments.Service, stripe payments.StripeConfig, log *logger.Logger) *Handler {
	return &Handler{Service: service, Stripe: stripe, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pagos", func(r chi.Router) {
		r.Post("/", h.CreatePayment)
		r.Get("/{paymentId}", h.GetPayment)
		r.Post("/{paymentId}/intent", h.CreateIntent)
		r.Post("/webhook", h.StripeWebhook)
	})
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	payment, err := h.Service.CreatePayment(r.Context(), req, utils.ClientIP(r), r.UserAgent())
	switch {
	case errors.Is(err, payments.ErrInvalidRequest), errors.Is(err, payments.ErrInvalidMethod):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid payment request", err.Error()))
		return
	case errors.Is(err, payments.ErrCourseInactive):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("course is not accepting payments", req.CourseSlug))
		return
	case errors.Is(err, db.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("course not found", req.CourseSlug))
		return
	case err != nil:
		h.Logger.Error("PAYMENT", "Failed to create payment: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to create payment", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("payment created", payment))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentId")
	payment, err := h.Service.GetPayment(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("payment not found", id))
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to get payment", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment", payment))
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentId")
	intent, err := h.Service.CreateIntent(r.Context(), id, h.Stripe)
	if errors.Is(err, db.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("payment not found", id))
		return
	}
	if err != nil {
		h.Logger.Error("PAYMENT", "Failed to create payment intent: "+err.Error())
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("failed to create payment intent", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment intent created", map[string]string{
		"payment_id":    id,
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
	}))
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.HandleStripeWebhook(r, h.Stripe); err != nil {
		var werr *payments.WebhookError
		if errors.As(err, &werr) {
			utils.WriteJSON(w, werr.StatusCode, utils.ErrorResponse(werr.PublicError, ""))
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("webhook processing error", ""))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("webhook processed", nil))
}
