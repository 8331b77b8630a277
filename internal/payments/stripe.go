package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/webhook"

	"ms-cursos/internal/models"
)

// InitStripe initializes the Stripe API with the secret key.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// StripeConfig carries the charge settings the card flow needs.
type StripeConfig struct {
	Currency      string
	WebhookSecret string
}

// CreateIntent creates (or retrieves) the Stripe payment intent for a card
// payment. The amount is quantity times the course price at the payment's
// frozen version; a stored intent id is reused while it is still payable.
func (s *Service) CreateIntent(ctx context.Context, paymentID string, cfg StripeConfig) (*stripe.PaymentIntent, error) {
	payment, err := s.DB.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Method != models.MethodCard {
		return nil, fmt.Errorf("payment %s uses method %s, not card", paymentID, payment.Method)
	}
	if payment.Charged {
		return nil, fmt.Errorf("payment %s is already charged", paymentID)
	}

	if payment.IntentID != "" {
		intent, err := paymentintent.Get(payment.IntentID, nil)
		if err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to retrieve payment intent %s: %v", payment.IntentID, err))
		} else if intent.Status != stripe.PaymentIntentStatusCanceled &&
			intent.Status != stripe.PaymentIntentStatusSucceeded {
			s.Logger.Info("PAYMENT", fmt.Sprintf("Reusing payment intent %s with status %s", intent.ID, intent.Status))
			return intent, nil
		}
	}

	course, err := s.DB.GetCourseByID(ctx, payment.CourseID)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", payment.CourseID, err)
	}

	amount := int64(payment.Quantity) * course.Price
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(cfg.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("payment_id", paymentID)

	intent, err := paymentintent.New(params)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, err
	}

	payment.IntentID = intent.ID
	if err := s.DB.UpdatePayment(ctx, payment); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to store intent id on payment %s: %v", paymentID, err))
		return nil, err
	}

	s.Logger.LogPayment("INTENT", paymentID, fmt.Sprintf("Created payment intent %s for %d %s", intent.ID, amount, cfg.Currency))
	return intent, nil
}

// WebhookError carries a safe public message alongside the detailed one.
type WebhookError struct {
	StatusCode    int
	PublicError   string
	InternalError string
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleStripeWebhook verifies and processes a Stripe event. A succeeded
// intent marks its payment charged; a failed one records the provider error.
func (s *Service) HandleStripeWebhook(r *http.Request, cfg StripeConfig) error {
	if cfg.WebhookSecret == "" {
		s.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
		}
	}

	opts := webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), cfg.WebhookSecret, opts)
	if err != nil {
		s.Logger.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded":
		intent, werr := parseIntent(event.Data.Raw)
		if werr != nil {
			return werr
		}
		paymentID := intent.Metadata["payment_id"]
		if paymentID == "" {
			return &WebhookError{
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid payment intent data",
				InternalError: "Payment intent has no payment_id in metadata",
			}
		}
		if _, err := s.MarkCharged(r.Context(), paymentID); err != nil {
			s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to mark payment %s charged: %v", paymentID, err))
			return &WebhookError{
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process payment",
				InternalError: fmt.Sprintf("Failed to mark payment %s charged: %v", paymentID, err),
			}
		}

	case "payment_intent.payment_failed":
		intent, werr := parseIntent(event.Data.Raw)
		if werr != nil {
			return werr
		}
		paymentID := intent.Metadata["payment_id"]
		if paymentID == "" {
			return &WebhookError{
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid payment intent data",
				InternalError: "Failed payment intent has no payment_id in metadata",
			}
		}
		message := "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			message = intent.LastPaymentError.Msg
		}
		if err := s.RecordFailure(r.Context(), paymentID, message); err != nil {
			s.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to record failure for payment %s: %v", paymentID, err))
			return &WebhookError{
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to record payment failure",
				InternalError: fmt.Sprintf("Failed to record failure for payment %s: %v", paymentID, err),
			}
		}

	default:
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

func parseIntent(raw json.RawMessage) (*stripe.PaymentIntent, *WebhookError) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, &WebhookError{
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
		}
	}
	return &intent, nil
}
