package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-cursos/internal/kafka"
	"ms-cursos/internal/logger"
	"ms-cursos/internal/models"
	"ms-cursos/internal/notifier"
)

var (
	ErrInvalidMethod  = errors.New("invalid payment method")
	ErrInvalidRequest = errors.New("invalid payment request")
	ErrCourseInactive = errors.New("course is not accepting payments")
)

type DBLayer interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	MarkCharged(ctx context.Context, paymentID string) error
	ClaimReceiptSend(ctx context.Context, paymentID string) (bool, error)
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error)
}

// Publisher emits lifecycle events. A nil Publisher disables events without
// touching the payment flow.
type Publisher interface {
	PublishJSON(topic string, key string, payload interface{}) error
}

type Service struct {
	DB         DBLayer
	Mailer     notifier.Sender
	Calculator notifier.Calculator
	Events     Publisher
	Logger     *logger.Logger
}

func NewService(db DBLayer, mailer notifier.Sender, calc notifier.Calculator, events Publisher, log *logger.Logger) *Service {
	return &Service{
		DB:         db,
		Mailer:     mailer,
		Calculator: calc,
		Events:     events,
		Logger:     log,
	}
}

// CreatePayment records a purchase attempt against the course named by slug.
// The course's current version is stamped onto the row and never changes
// afterwards, so later version bumps don't move old payments into the new
// cycle. Deposit payments get the bank instructions email right away.
func (s *Service) CreatePayment(ctx context.Context, req models.PaymentRequest, ip, userAgent string) (*models.Payment, error) {
	if req.Email == "" || req.Name == "" {
		return nil, ErrInvalidRequest
	}
	if !models.ValidMethod(req.Method) {
		return nil, ErrInvalidMethod
	}

	course, err := s.DB.GetCourseBySlug(ctx, req.CourseSlug)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", req.CourseSlug, err)
	}
	if !course.Active {
		return nil, ErrCourseInactive
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	payment := &models.Payment{
		PaymentID: uuid.NewString(),
		CourseID:  course.CourseID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Country:   req.Country,
		Quantity:  quantity,
		CreatedAt: time.Now(),
		Method:    req.Method,
		Version:   course.Version,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.DB.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	s.Logger.LogPayment("CREATED", payment.PaymentID,
		fmt.Sprintf("Method %s, %d seat(s), course %s v%d", payment.Method, payment.Quantity, course.Slug, payment.Version))

	if payment.Method == models.MethodDeposit {
		s.sendCourseInfo(ctx, payment, course)
	}

	s.publish(kafka.TopicPaymentCreated, payment)
	return payment, nil
}

// SavePayment persists updated payment fields and re-runs the receipt check,
// so any path that flips charged eventually delivers the receipt exactly
// once.
func (s *Service) SavePayment(ctx context.Context, payment *models.Payment) error {
	if err := s.DB.UpdatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	s.deliverReceipt(ctx, payment)
	return nil
}

// MarkCharged records a confirmed charge and triggers the receipt email. The
// charge is persisted through a dedicated flag update, never by writing the
// caller's struct back, and a failed receipt never unwinds it.
func (s *Service) MarkCharged(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.DB.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.MarkCharged(ctx, paymentID); err != nil {
		return nil, fmt.Errorf("failed to mark payment charged: %w", err)
	}
	payment.Charged = true
	payment.Error = ""
	s.Logger.LogPayment("CHARGED", payment.PaymentID, "Charge confirmed")

	s.deliverReceipt(ctx, payment)
	s.publish(kafka.TopicPaymentCharged, payment)
	return payment, nil
}

// RecordFailure stores the provider error on the payment without charging it.
func (s *Service) RecordFailure(ctx context.Context, paymentID, message string) error {
	payment, err := s.DB.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	payment.Error = message

	if err := s.DB.UpdatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	s.Logger.LogPayment("FAILED", payment.PaymentID, message)
	return nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.DB.GetPaymentByID(ctx, paymentID)
}

// deliverReceipt sends the receipt email for a charged payment at most once.
// The sent flag is claimed in the database before mailing, so a second save
// racing this one loses the claim and skips the send. Every failure past the
// charge itself is logged and swallowed; the claim is not rolled back.
func (s *Service) deliverReceipt(ctx context.Context, payment *models.Payment) {
	if !payment.Charged || payment.Sent {
		return
	}

	claimed, err := s.DB.ClaimReceiptSend(ctx, payment.PaymentID)
	if err != nil {
		s.Logger.LogPayment("RECEIPT", payment.PaymentID, "Failed to claim receipt send: "+err.Error())
		return
	}
	if !claimed {
		return
	}
	payment.Sent = true

	course, err := s.DB.GetCourseByID(ctx, payment.CourseID)
	if err != nil {
		s.Logger.LogPayment("RECEIPT", payment.PaymentID, "Failed to load course for receipt: "+err.Error())
		return
	}

	breakdown := s.Calculator.Calculate(payment.Quantity, course.Price)
	data := breakdown.MailContext()
	data["curso"] = course
	data["pago"] = payment

	subject := fmt.Sprintf("Comprobante de pago: %s", course.Name)
	if err := s.Mailer.Send(ctx, notifier.TemplateCourseReceipt, data, subject, payment.Email); err != nil {
		s.Logger.LogMail(notifier.TemplateCourseReceipt, payment.Email, "Delivery failed: "+err.Error())
		return
	}
	s.Logger.LogMail(notifier.TemplateCourseReceipt, payment.Email, "Receipt delivered")
}

func (s *Service) sendCourseInfo(ctx context.Context, payment *models.Payment, course *models.Course) {
	data := map[string]interface{}{
		"curso": course,
		"pago":  payment,
	}
	subject := fmt.Sprintf("Instrucciones de pago: %s", course.Name)
	if err := s.Mailer.Send(ctx, notifier.TemplateCourseInfo, data, subject, payment.Email); err != nil {
		s.Logger.LogMail(notifier.TemplateCourseInfo, payment.Email, "Delivery failed: "+err.Error())
		return
	}
	s.Logger.LogMail(notifier.TemplateCourseInfo, payment.Email, "Deposit instructions delivered")
}

func (s *Service) publish(topic string, payment *models.Payment) {
	if s.Events == nil {
		return
	}
	event := models.PaymentResponse{
		PaymentID: payment.PaymentID,
		CourseID:  payment.CourseID,
		Method:    payment.Method,
		Charged:   payment.Charged,
		Version:   payment.Version,
	}
	if err := s.Events.PublishJSON(topic, payment.PaymentID, event); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s: %v", topic, err))
	}
}
