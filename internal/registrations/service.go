package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ms-cursos/internal/kafka"
	"ms-cursos/internal/logger"
	"ms-cursos/internal/mailchimp"
	"ms-cursos/internal/models"
)

var ErrInvalidRequest = errors.New("invalid registration request")

type DBLayer interface {
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	GetRegistrationByID(ctx context.Context, id string) (*models.Registration, error)
	DeleteRegistration(ctx context.Context, id string) error
	ListByPayment(ctx context.Context, paymentID string) ([]models.Registration, error)
	CountByPayment(ctx context.Context, paymentID string) (int, error)
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetCourseByID(ctx context.Context, id string) (*models.Course, error)
}

// PlatformClient provisions course access on the external learning platform.
type PlatformClient interface {
	Preregister(ctx context.Context, slug, email string) error
	DeletePreregistration(ctx context.Context, slug, email string) error
}

// ListSubscriber adds the registrant to the course mailing segment.
type ListSubscriber interface {
	Subscribe(ctx context.Context, sub mailchimp.Subscriber) error
}

type Publisher interface {
	PublishJSON(topic string, key string, payload interface{}) error
}

type Service struct {
	DB       DBLayer
	Platform PlatformClient
	List     ListSubscriber
	Events   Publisher
	Logger   *logger.Logger
}

func NewService(db DBLayer, platform PlatformClient, list ListSubscriber, events Publisher, log *logger.Logger) *Service {
	return &Service{
		DB:       db,
		Platform: platform,
		List:     list,
		Events:   events,
		Logger:   log,
	}
}

// CreateRegistration redeems one seat against a payment. The local row is the
// source of truth; platform provisioning and the mailing-list subscribe run
// after the insert and their failures are logged, never surfaced. No cap is
// enforced against the payment's seat quantity.
func (s *Service) CreateRegistration(ctx context.Context, req models.RegistrationRequest) (*models.Registration, error) {
	if req.PaymentID == "" || req.Email == "" {
		return nil, ErrInvalidRequest
	}

	payment, err := s.DB.GetPaymentByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", req.PaymentID, err)
	}
	course, err := s.DB.GetCourseByID(ctx, payment.CourseID)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", payment.CourseID, err)
	}

	reg := &models.Registration{
		RegistrationID: uuid.NewString(),
		PaymentID:      payment.PaymentID,
		Email:          req.Email,
	}
	if err := s.DB.CreateRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	s.Logger.Info("REGISTRATION", fmt.Sprintf("Registered %s on course %s (payment %s)", reg.Email, course.Slug, payment.PaymentID))

	if s.Platform != nil {
		if err := s.Platform.Preregister(ctx, course.Slug, reg.Email); err != nil {
			s.Logger.Warn("PLATFORM", fmt.Sprintf("Preregistration for %s failed: %v", reg.Email, err))
		}
	}

	if s.List != nil && course.MailingList != "" {
		sub := mailchimp.Subscriber{
			Email:     reg.Email,
			FirstName: payment.Name,
			IP:        payment.IP,
			Country:   payment.Country,
			Segment:   course.MailingList,
		}
		if err := s.List.Subscribe(ctx, sub); err != nil {
			s.Logger.Warn("MAILCHIMP", fmt.Sprintf("Subscribe for %s failed: %v", reg.Email, err))
		}
	}

	s.publish(kafka.TopicRegistrationCreated, reg)
	return reg, nil
}

// DeleteRegistration removes the seat and tears down the platform
// preregistration. The platform call happens exactly once per delete and its
// failure does not block the removal.
func (s *Service) DeleteRegistration(ctx context.Context, id string) error {
	reg, err := s.DB.GetRegistrationByID(ctx, id)
	if err != nil {
		return err
	}

	var slug string
	if payment, err := s.DB.GetPaymentByID(ctx, reg.PaymentID); err == nil {
		if course, err := s.DB.GetCourseByID(ctx, payment.CourseID); err == nil {
			slug = course.Slug
		}
	}

	if err := s.DB.DeleteRegistration(ctx, id); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	s.Logger.Info("REGISTRATION", fmt.Sprintf("Removed registration %s (%s)", id, reg.Email))

	if s.Platform != nil && slug != "" {
		if err := s.Platform.DeletePreregistration(ctx, slug, reg.Email); err != nil {
			s.Logger.Warn("PLATFORM", fmt.Sprintf("Preregistration teardown for %s failed: %v", reg.Email, err))
		}
	}

	s.publish(kafka.TopicRegistrationDeleted, reg)
	return nil
}

func (s *Service) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	return s.DB.GetRegistrationByID(ctx, id)
}

func (s *Service) ListByPayment(ctx context.Context, paymentID string) ([]models.Registration, error) {
	return s.DB.ListByPayment(ctx, paymentID)
}

func (s *Service) publish(topic string, reg *models.Registration) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishJSON(topic, reg.RegistrationID, reg); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s: %v", topic, err))
	}
}
